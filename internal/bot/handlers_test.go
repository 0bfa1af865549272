package bot_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrohub.dev/garden-hub/internal/bot"
	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/store"
)

// fakeAPI records every chattable the bot sends.
type fakeAPI struct {
	sent      []tgbotapi.Chattable
	nextMsgID int
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.sent = append(a.sent, c)
	a.nextMsgID++
	return tgbotapi.Message{MessageID: a.nextMsgID}, nil
}

func (a *fakeAPI) Request(_ tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts flattens the sent chattables into their visible text.
func (a *fakeAPI) texts() []string {
	out := make([]string, 0, len(a.sent))
	for _, c := range a.sent {
		switch msg := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, msg.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, msg.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, msg.Caption)
		case tgbotapi.CopyMessageConfig:
			out = append(out, msg.Caption)
		}
	}
	return out
}

func (a *fakeAPI) allText() string {
	return strings.Join(a.texts(), "\n---\n")
}

// fakeStore is an in-memory Records implementation.
type fakeStore struct {
	users  map[string]*store.User
	robots map[uint]string
	plants []store.Plant
	qrMsgs map[string]int
	scans  []store.ScanRecord
	nextID uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*store.User),
		robots: make(map[uint]string),
		qrMsgs: make(map[string]int),
		nextID: 1,
	}
}

func (f *fakeStore) EnsureUser(_ context.Context, telegramID, username string) (*store.User, error) {
	if u, ok := f.users[telegramID]; ok {
		return u, nil
	}
	u := &store.User{TelegramID: telegramID, Username: username}
	u.ID = f.nextID
	f.nextID++
	f.users[telegramID] = u
	return u, nil
}

func (f *fakeStore) UserByTelegramID(_ context.Context, telegramID string) (*store.User, error) {
	if u, ok := f.users[telegramID]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) BindRobot(_ context.Context, robotID string, userID uint) error {
	f.robots[userID] = robotID
	return nil
}

func (f *fakeStore) RobotForUser(_ context.Context, userID uint) (*store.Robot, error) {
	robotID, ok := f.robots[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Robot{RobotID: robotID, UserID: userID}, nil
}

func (f *fakeStore) AddPlant(_ context.Context, plant *store.Plant) error {
	plant.Status = store.PlantStatusActive
	f.plants = append(f.plants, *plant)
	return nil
}

func (f *fakeStore) ActivePlants(_ context.Context, userID uint) ([]store.Plant, error) {
	var out []store.Plant
	for _, p := range f.plants {
		if p.UserID == userID && p.Status == store.PlantStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ActivePlant(_ context.Context, userID uint, plantID string) (*store.Plant, error) {
	for _, p := range f.plants {
		if p.UserID == userID && p.PlantID == plantID && p.Status == store.PlantStatusActive {
			plant := p
			return &plant, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) DeletePlant(_ context.Context, userID uint, plantID string) error {
	for i, p := range f.plants {
		if p.UserID == userID && p.PlantID == plantID {
			f.plants[i].Status = store.PlantStatusDeleted
		}
	}
	return nil
}

func (f *fakeStore) SetQRMessageID(_ context.Context, plantID string, messageID int) error {
	f.qrMsgs[plantID] = messageID
	return nil
}

func (f *fakeStore) QRMessageID(_ context.Context, plantID string) (int, error) {
	id, ok := f.qrMsgs[plantID]
	if !ok || id == 0 {
		return 0, store.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) ScansByPlant(_ context.Context, plantID string, limit int) ([]store.ScanRecord, error) {
	var out []store.ScanRecord
	for _, s := range f.scans {
		if s.PlantID == plantID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ScanTimestamps(_ context.Context, robotID string, limit int) ([]time.Time, error) {
	var out []time.Time
	for _, s := range f.scans {
		if s.RobotID == robotID && len(out) < limit {
			out = append(out, s.Timestamp)
		}
	}
	return out, nil
}

func (f *fakeStore) ScansByTimestamp(_ context.Context, robotID string, ts time.Time) ([]store.ScanRecord, error) {
	var out []store.ScanRecord
	for _, s := range f.scans {
		if s.RobotID == robotID && s.Timestamp.Equal(ts) {
			out = append(out, s)
		}
	}
	return out, nil
}

const (
	testChatID     = int64(100)
	testTelegramID = int64(42)
)

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{ID: testTelegramID, UserName: "gardener"},
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			From: &tgbotapi.User{ID: testTelegramID, UserName: "gardener"},
			Message: &tgbotapi.Message{
				MessageID: 10,
				Chat:      &tgbotapi.Chat{ID: testChatID},
			},
		},
	}
}

var _ = Describe("Bot", func() {
	var (
		ctx     context.Context
		api     *fakeAPI
		records *fakeStore
		cells   *command.MemoryStore
		b       *bot.Bot
	)

	ensureUser := func() *store.User {
		u, err := records.EnsureUser(ctx, fmt.Sprintf("%d", testTelegramID), "gardener")
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	bindRobot := func(robotID string) *store.User {
		u := ensureUser()
		Expect(records.BindRobot(ctx, robotID, u.ID)).To(Succeed())
		return u
	}

	BeforeEach(func() {
		ctx = context.Background()
		api = &fakeAPI{}
		records = newFakeStore()
		cells = command.NewMemoryStore()

		log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		var err error
		b, err = bot.New(&bot.Config{
			Logger:   log,
			API:      api,
			Records:  records,
			Commands: cells,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("should return error when config is nil", func() {
			bb, err := bot.New(nil)
			Expect(err).To(HaveOccurred())
			Expect(bb).To(BeNil())
		})

		It("should return error when the api is nil", func() {
			bb, err := bot.New(&bot.Config{
				Records:  records,
				Commands: cells,
			})
			Expect(err).To(HaveOccurred())
			Expect(bb).To(BeNil())
		})
	})

	Describe("/start", func() {
		It("should register the operator and prompt for binding", func() {
			b.HandleUpdate(ctx, textUpdate("/start"))

			Expect(records.users).To(HaveKey("42"))
			Expect(api.allText()).To(ContainSubstring("bind your robot platform"))
		})

		It("should greet a bound operator with the main menu", func() {
			bindRobot("R1")

			b.HandleUpdate(ctx, textUpdate("/start"))
			Expect(api.allText()).To(ContainSubstring("Choose an action"))
		})
	})

	Describe("bind flow", func() {
		It("should bind the entered robot id", func() {
			ensureUser()

			b.HandleUpdate(ctx, callbackUpdate("bind_robot"))
			Expect(api.allText()).To(ContainSubstring("ROBOT_ID"))

			b.HandleUpdate(ctx, textUpdate("R7"))
			Expect(api.allText()).To(ContainSubstring("Robot R7 bound successfully"))

			u := records.users["42"]
			Expect(records.robots[u.ID]).To(Equal("R7"))
		})
	})

	Describe("scan control", func() {
		It("should write start into the robot's command cell", func() {
			bindRobot("R1")

			b.HandleUpdate(ctx, callbackUpdate("start_scan"))

			cell, err := cells.GetDesired(ctx, "R1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cell.Command).To(Equal(command.Start))
			Expect(cell.Reason).To(Equal(command.ReasonManual))
		})

		It("should write stop into the robot's command cell", func() {
			bindRobot("R1")
			Expect(cells.SetDesired(ctx, "R1", command.Start, "")).To(Succeed())

			b.HandleUpdate(ctx, callbackUpdate("stop_scan"))

			cell, err := cells.GetDesired(ctx, "R1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cell.Command).To(Equal(command.Stop))
		})

		It("should steer an unbound operator into the bind flow", func() {
			ensureUser()

			b.HandleUpdate(ctx, callbackUpdate("start_scan"))
			Expect(api.allText()).To(ContainSubstring("bind a robot"))

			cell, err := cells.GetDesired(ctx, "R1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cell.Command).To(Equal(command.Stop))
		})
	})

	Describe("add plant flow", func() {
		It("should walk species and location and persist the plant with a QR label", func() {
			bindRobot("R1")

			b.HandleUpdate(ctx, callbackUpdate("add_plant"))
			Expect(api.allText()).To(ContainSubstring("species"))

			b.HandleUpdate(ctx, textUpdate("Cherry Tomato"))
			Expect(api.allText()).To(ContainSubstring("location"))

			b.HandleUpdate(ctx, textUpdate("Row 1 Position 1"))

			Expect(records.plants).To(HaveLen(1))
			plant := records.plants[0]
			Expect(plant.Species).To(Equal("Cherry Tomato"))
			Expect(plant.Location).To(Equal("Row 1 Position 1"))
			Expect(plant.PlantID).NotTo(BeEmpty())
			Expect(records.qrMsgs).To(HaveKey(plant.PlantID))

			var photos int
			for _, c := range api.sent {
				if _, ok := c.(tgbotapi.PhotoConfig); ok {
					photos++
				}
			}
			Expect(photos).To(Equal(1))
		})

		It("should discard the flow on cancel", func() {
			bindRobot("R1")

			b.HandleUpdate(ctx, callbackUpdate("add_plant"))
			b.HandleUpdate(ctx, textUpdate("Cherry Tomato"))
			b.HandleUpdate(ctx, callbackUpdate("cancel_add"))

			// Free text after cancel is not treated as a location.
			b.HandleUpdate(ctx, textUpdate("Row 1 Position 1"))
			Expect(records.plants).To(BeEmpty())
		})
	})

	Describe("delete flow", func() {
		var plantID string

		BeforeEach(func() {
			u := bindRobot("R1")
			plantID = "plant-1"
			Expect(records.AddPlant(ctx, &store.Plant{
				PlantID:  plantID,
				UserID:   u.ID,
				Species:  "Cherry Tomato",
				Location: "Row 1",
			})).To(Succeed())
		})

		It("should ask for confirmation before deleting", func() {
			b.HandleUpdate(ctx, callbackUpdate("prompt_delete:"+plantID))

			Expect(api.allText()).To(ContainSubstring("really want to delete"))
			Expect(records.plants[0].Status).To(Equal(store.PlantStatusActive))
		})

		It("should delete on yes", func() {
			b.HandleUpdate(ctx, callbackUpdate("delete_yes:"+plantID))
			Expect(records.plants[0].Status).To(Equal(store.PlantStatusDeleted))
		})

		It("should be a no-op on no", func() {
			b.HandleUpdate(ctx, callbackUpdate("delete_no"))

			Expect(records.plants[0].Status).To(Equal(store.PlantStatusActive))
			Expect(api.allText()).To(ContainSubstring("Deletion canceled"))
		})
	})

	Describe("history", func() {
		It("should report when a plant has no scans", func() {
			bindRobot("R1")

			b.HandleUpdate(ctx, callbackUpdate("view_history:plant-1"))
			Expect(api.allText()).To(ContainSubstring("No scans yet"))
		})

		It("should send one captioned photo per scan", func() {
			u := bindRobot("R1")
			Expect(records.AddPlant(ctx, &store.Plant{
				PlantID:  "plant-1",
				UserID:   u.ID,
				Species:  "Cherry Tomato",
				Location: "Row 1",
			})).To(Succeed())
			records.scans = append(records.scans, store.ScanRecord{
				RobotID:   "R1",
				PlantID:   "plant-1",
				Timestamp: time.Date(2024, 5, 8, 14, 3, 22, 0, time.UTC),
				ImageURL:  "http://hub.local/files/scan.jpg",
				Diseases:  store.FindingList{{Name: "early blight", Probability: 0.87}},
			})

			b.HandleUpdate(ctx, callbackUpdate("view_history:plant-1"))

			Expect(api.allText()).To(ContainSubstring("Cherry Tomato"))
			Expect(api.allText()).To(ContainSubstring("early blight (87.0%)"))
		})

		It("should render a fixed phrase for scans without findings", func() {
			u := bindRobot("R1")
			Expect(records.AddPlant(ctx, &store.Plant{
				PlantID: "plant-1",
				UserID:  u.ID,
				Species: "Cherry Tomato",
			})).To(Succeed())
			records.scans = append(records.scans, store.ScanRecord{
				RobotID:   "R1",
				PlantID:   "plant-1",
				Timestamp: time.Now().UTC(),
				ImageURL:  "http://hub.local/files/scan.jpg",
			})

			b.HandleUpdate(ctx, callbackUpdate("view_history:plant-1"))
			Expect(api.allText()).To(ContainSubstring("no diseases detected"))
		})
	})

	Describe("unknown operator", func() {
		It("should ask the operator to run /start", func() {
			b.HandleUpdate(ctx, callbackUpdate("view_plants"))
			Expect(api.allText()).To(ContainSubstring("/start"))
		})
	})
})
