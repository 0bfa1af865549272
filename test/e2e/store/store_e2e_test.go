package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"agrohub.dev/garden-hub/internal/store"
)

// newTelegramID returns a unique chat identity so specs stay independent.
func newTelegramID() string {
	return fmt.Sprintf("%d", gofakeit.Int64())
}

var _ = Describe("Record Store E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Users", func() {
		It("should create a user on first interaction", func() {
			telegramID := newTelegramID()

			user, err := records.EnsureUser(ctx, telegramID, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).NotTo(BeZero())
			Expect(user.TelegramID).To(Equal(telegramID))
			Expect(user.Username).To(Equal("alice"))
		})

		It("should return the existing row on repeat interactions", func() {
			telegramID := newTelegramID()

			first, err := records.EnsureUser(ctx, telegramID, "bob")
			Expect(err).NotTo(HaveOccurred())

			second, err := records.EnsureUser(ctx, telegramID, "bob-renamed")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))
			Expect(second.Username).To(Equal("bob"))
		})

		It("should look up a user by chat identity", func() {
			telegramID := newTelegramID()

			created, err := records.EnsureUser(ctx, telegramID, "carol")
			Expect(err).NotTo(HaveOccurred())

			found, err := records.UserByTelegramID(ctx, telegramID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(created.ID))
		})

		It("should report unknown chat identities as not found", func() {
			_, err := records.UserByTelegramID(ctx, "no-such-chat")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Robot bindings", func() {
		It("should bind a robot to its owner", func() {
			user, err := records.EnsureUser(ctx, newTelegramID(), "dave")
			Expect(err).NotTo(HaveOccurred())

			robotID := "robot-" + uuid.NewString()
			Expect(records.BindRobot(ctx, robotID, user.ID)).To(Succeed())

			robot, err := records.RobotForUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(robot.RobotID).To(Equal(robotID))

			owner, err := records.OwnerForRobot(ctx, robotID)
			Expect(err).NotTo(HaveOccurred())
			Expect(owner.ID).To(Equal(user.ID))
		})

		It("should move the binding when a second owner re-binds the robot", func() {
			first, err := records.EnsureUser(ctx, newTelegramID(), "erin")
			Expect(err).NotTo(HaveOccurred())
			second, err := records.EnsureUser(ctx, newTelegramID(), "frank")
			Expect(err).NotTo(HaveOccurred())

			robotID := "robot-" + uuid.NewString()
			Expect(records.BindRobot(ctx, robotID, first.ID)).To(Succeed())
			Expect(records.BindRobot(ctx, robotID, second.ID)).To(Succeed())

			owner, err := records.OwnerForRobot(ctx, robotID)
			Expect(err).NotTo(HaveOccurred())
			Expect(owner.ID).To(Equal(second.ID))

			// The first owner no longer has a robot
			_, err = records.RobotForUser(ctx, first.ID)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("should resolve a robot to its owner's chat identity", func() {
			telegramID := newTelegramID()
			user, err := records.EnsureUser(ctx, telegramID, "grace")
			Expect(err).NotTo(HaveOccurred())

			robotID := "robot-" + uuid.NewString()
			Expect(records.BindRobot(ctx, robotID, user.ID)).To(Succeed())

			got, err := records.TelegramIDForRobot(ctx, robotID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(telegramID))
		})

		It("should report unbound robots as not found", func() {
			_, err := records.OwnerForRobot(ctx, "robot-"+uuid.NewString())
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Plants", func() {
		var user *store.User

		BeforeEach(func() {
			var err error
			user, err = records.EnsureUser(ctx, newTelegramID(), gofakeit.Username())
			Expect(err).NotTo(HaveOccurred())
		})

		addPlant := func(species, location string) *store.Plant {
			plant := &store.Plant{
				PlantID:  uuid.NewString(),
				UserID:   user.ID,
				Species:  species,
				Location: location,
			}
			Expect(records.AddPlant(ctx, plant)).To(Succeed())
			return plant
		}

		It("should list active plants oldest first", func() {
			first := addPlant("Cherry Tomato", "Greenhouse 1")
			second := addPlant("Basil", "Windowsill")

			plants, err := records.ActivePlants(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(plants).To(HaveLen(2))
			Expect(plants[0].PlantID).To(Equal(first.PlantID))
			Expect(plants[1].PlantID).To(Equal(second.PlantID))
		})

		It("should look up an active plant by its token", func() {
			plant := addPlant("Cucumber", "Bed 3")

			found, err := records.ActivePlant(ctx, user.ID, plant.PlantID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Species).To(Equal("Cucumber"))
			Expect(found.Location).To(Equal("Bed 3"))
			Expect(found.Status).To(Equal(store.PlantStatusActive))
		})

		It("should soft-delete a plant and keep the row", func() {
			plant := addPlant("Pepper", "Bed 1")

			Expect(records.DeletePlant(ctx, user.ID, plant.PlantID)).To(Succeed())

			// Gone from the active views
			_, err := records.ActivePlant(ctx, user.ID, plant.PlantID)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())

			plants, err := records.ActivePlants(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(plants).To(BeEmpty())

			// The row itself survives with a flipped status
			var raw store.Plant
			Expect(db.Where("plant_id = ?", plant.PlantID).First(&raw).Error).To(Succeed())
			Expect(raw.Status).To(Equal(store.PlantStatusDeleted))
		})

		It("should not let one owner delete another owner's plant", func() {
			plant := addPlant("Strawberry", "Bed 2")

			other, err := records.EnsureUser(ctx, newTelegramID(), gofakeit.Username())
			Expect(err).NotTo(HaveOccurred())

			Expect(records.DeletePlant(ctx, other.ID, plant.PlantID)).To(Succeed())

			found, err := records.ActivePlant(ctx, user.ID, plant.PlantID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Status).To(Equal(store.PlantStatusActive))
		})

		It("should remember and return the QR label message id", func() {
			plant := addPlant("Mint", "Windowsill")

			_, err := records.QRMessageID(ctx, plant.PlantID)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())

			Expect(records.SetQRMessageID(ctx, plant.PlantID, 4242)).To(Succeed())

			messageID, err := records.QRMessageID(ctx, plant.PlantID)
			Expect(err).NotTo(HaveOccurred())
			Expect(messageID).To(Equal(4242))
		})
	})

	Describe("Scan history", func() {
		var (
			robotID string
			plantA  string
			plantB  string
		)

		createScan := func(plantID string, ts time.Time, diseases store.FindingList) {
			scan := &store.ScanRecord{
				RobotID:   robotID,
				PlantID:   plantID,
				Diseases:  diseases,
				Timestamp: ts,
				ImageURL:  "http://hub.local/files/" + uuid.NewString() + ".jpg",
			}
			Expect(records.CreateScan(ctx, scan)).To(Succeed())
		}

		BeforeEach(func() {
			robotID = "robot-" + uuid.NewString()
			plantA = uuid.NewString()
			plantB = uuid.NewString()
		})

		It("should round-trip disease findings through the JSON column", func() {
			ts := time.Date(2024, 5, 8, 14, 3, 22, 0, time.UTC)
			createScan(plantA, ts, store.FindingList{
				{Name: "early blight", Probability: 0.87},
				{Name: "leaf mold", Probability: 0.61},
			})

			scans, err := records.ScansByPlant(ctx, plantA, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
			Expect(scans[0].Diseases).To(HaveLen(2))
			Expect(scans[0].Diseases[0].Name).To(Equal("early blight"))
			Expect(scans[0].Diseases[0].Probability).To(BeNumerically("~", 0.87, 1e-9))
		})

		It("should read an empty finding list back as empty, not nil garbage", func() {
			createScan(plantA, time.Now().UTC().Truncate(time.Second), store.FindingList{})

			scans, err := records.ScansByPlant(ctx, plantA, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
			Expect(scans[0].Diseases).To(BeEmpty())
		})

		It("should return plant scans newest first within the limit", func() {
			base := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 4; i++ {
				createScan(plantA, base.Add(time.Duration(i)*time.Hour), nil)
			}

			scans, err := records.ScansByPlant(ctx, plantA, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(3))
			Expect(scans[0].Timestamp.UTC()).To(Equal(base.Add(3 * time.Hour)))
			Expect(scans[1].Timestamp.UTC()).To(Equal(base.Add(2 * time.Hour)))
			Expect(scans[2].Timestamp.UTC()).To(Equal(base.Add(1 * time.Hour)))
		})

		It("should collapse a pass into one distinct timestamp", func() {
			pass1 := time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)
			pass2 := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)

			// Two plants scanned in each pass share the pass timestamp
			createScan(plantA, pass1, nil)
			createScan(plantB, pass1, nil)
			createScan(plantA, pass2, nil)
			createScan(plantB, pass2, nil)

			timestamps, err := records.ScanTimestamps(ctx, robotID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(timestamps).To(HaveLen(2))
			Expect(timestamps[0].UTC()).To(Equal(pass2))
			Expect(timestamps[1].UTC()).To(Equal(pass1))
		})

		It("should return every scan of one pass by timestamp", func() {
			pass := time.Date(2024, 5, 8, 11, 30, 0, 0, time.UTC)
			createScan(plantA, pass, nil)
			createScan(plantB, pass, nil)
			createScan(plantA, pass.Add(time.Hour), nil)

			scans, err := records.ScansByTimestamp(ctx, robotID, pass)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(2))
			for _, scan := range scans {
				Expect(scan.Timestamp.UTC()).To(Equal(pass))
			}
		})

		It("should keep history for soft-deleted plants", func() {
			user, err := records.EnsureUser(ctx, newTelegramID(), gofakeit.Username())
			Expect(err).NotTo(HaveOccurred())

			plant := &store.Plant{
				PlantID:  plantA,
				UserID:   user.ID,
				Species:  "Cherry Tomato",
				Location: "Greenhouse 1",
			}
			Expect(records.AddPlant(ctx, plant)).To(Succeed())
			createScan(plantA, time.Now().UTC().Truncate(time.Second), nil)

			Expect(records.DeletePlant(ctx, user.ID, plantA)).To(Succeed())

			scans, err := records.ScansByPlant(ctx, plantA, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
		})
	})
})
