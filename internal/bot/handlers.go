package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/qr"
)

const (
	noDiseasesText  = "no diseases detected"
	printQRText     = "Print this QR code so the robot platform can identify the plant."
	scanCaptionText = "Plant: %s\nLocation: %s\nDiseases: %s\nTime: %s"
)

// handleMessage processes an inbound text message according to the
// chat's conversation state.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "cancel":
			b.sessions.Reset(chatID)
			b.sendMenu(chatID, chooseActionText, mainMenu())
		default:
			b.sendMenu(chatID, chooseActionText, mainMenu())
		}
		return
	}

	switch b.sessions.State(chatID) {
	case StateAwaitingRobotID:
		b.handleBindInput(ctx, msg)
	case StateAwaitingSpecies:
		b.handleSpeciesInput(msg)
	case StateAwaitingLocation:
		b.handleLocationInput(ctx, msg)
	default:
		b.sendMenu(chatID, chooseActionText, mainMenu())
	}
}

// handleStart registers the operator and shows the entry menu. Operators
// without a bound robot are steered into the bind flow first.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	telegramID := strconv.FormatInt(msg.From.ID, 10)

	user, err := b.records.EnsureUser(ctx, telegramID, msg.From.UserName)
	if err != nil {
		b.fail(chatID, "start", err)
		return
	}

	if _, err := b.records.RobotForUser(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "To get started, bind your robot platform.", bindMenu())
			return
		}
		b.fail(chatID, "start", err)
		return
	}

	b.sendMenu(chatID, "Welcome to the garden hub. Choose an action:", mainMenu())
}

// handleBindInput completes the bind flow with the entered robot id.
func (b *Bot) handleBindInput(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	robotID := strings.TrimSpace(msg.Text)
	if robotID == "" {
		b.sendText(chatID, "Please enter a robot id.")
		return
	}

	user, err := b.userFor(ctx, msg.From.ID)
	if err != nil {
		b.fail(chatID, actionBindRobot, err)
		return
	}

	if err := b.records.BindRobot(ctx, robotID, user.ID); err != nil {
		b.fail(chatID, actionBindRobot, err)
		return
	}

	b.sessions.Reset(chatID)
	b.sendMenu(chatID, fmt.Sprintf("Robot %s bound successfully!", robotID), mainMenu())
}

func (b *Bot) handleSpeciesInput(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	species := strings.TrimSpace(msg.Text)
	if species == "" {
		b.sendText(chatID, "Please enter a species name.")
		return
	}

	b.sessions.SetSpecies(chatID, species)
	reply := tgbotapi.NewMessage(chatID, "Enter the planting location (e.g. Row 1 Position 1):")
	reply.ReplyMarkup = cancelAddMenu()
	b.send(reply)
}

// handleLocationInput completes the add-plant flow: persists the plant,
// generates its QR label, and remembers the label's message id so it can
// be re-shown later.
func (b *Bot) handleLocationInput(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	location := strings.TrimSpace(msg.Text)
	if location == "" {
		b.sendText(chatID, "Please enter a location.")
		return
	}

	species := b.sessions.Species(chatID)

	user, err := b.userFor(ctx, msg.From.ID)
	if err != nil {
		b.fail(chatID, actionAddPlant, err)
		return
	}

	plantID := uuid.NewString()
	plant := &store.Plant{
		PlantID:  plantID,
		UserID:   user.ID,
		Species:  species,
		Location: location,
	}
	if err := b.records.AddPlant(ctx, plant); err != nil {
		b.fail(chatID, actionAddPlant, err)
		return
	}

	label, err := qr.Encode(plantID, qr.DefaultSize)
	if err != nil {
		b.fail(chatID, actionAddPlant, err)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "qr.png", Bytes: label})
	photo.Caption = fmt.Sprintf("New plant added!\nSpecies: %s\nLocation: %s\n%s",
		species, location, printQRText)
	sent := b.send(photo)

	if sent.MessageID != 0 {
		if err := b.records.SetQRMessageID(ctx, plantID, sent.MessageID); err != nil {
			b.logger.Error("failed to remember qr message id",
				"plant_id", plantID,
				"error", err,
			)
		}
	}

	b.sessions.Reset(chatID)
	b.sendMenu(chatID, chooseActionText, mainMenu())
}

// handleCallback dispatches one menu selection.
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback query", "error", err)
	}

	if query.Message == nil {
		return
	}

	action, arg, _ := strings.Cut(query.Data, ":")
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.HandlerDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		}
	}()

	switch action {
	case actionBindRobot:
		b.sessions.Begin(chatID, StateAwaitingRobotID)
		b.sendText(chatID, "Enter the ROBOT_ID from your robot's manual:")
		return

	case actionAddPlant:
		b.sessions.Begin(chatID, StateAwaitingSpecies)
		b.editMenu(chatID, messageID, "Enter your plant's species:", cancelAddMenu())
		return

	case actionCancelAdd:
		b.sessions.Reset(chatID)
		b.editMenu(chatID, messageID, chooseActionText, mainMenu())
		return

	case actionReturnMenu:
		b.editMenu(chatID, messageID, chooseActionText, mainMenu())
		return
	}

	user, err := b.userFor(ctx, query.From.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendText(chatID, "Please run /start first.")
			return
		}
		b.fail(chatID, action, err)
		return
	}

	switch action {
	case actionStartScan:
		b.handleScanControl(ctx, chatID, user, command.Start)
	case actionStopScan:
		b.handleScanControl(ctx, chatID, user, command.Stop)
	case actionViewPlants:
		b.showPlants(ctx, chatID, user)
	case actionViewQR:
		b.handleViewQR(ctx, chatID, user, arg)
	case actionDeletePlant:
		b.handleDeleteList(ctx, chatID, messageID, user)
	case actionDeleteBack:
		b.editMenu(chatID, messageID, plantActionsText, plantListMenu())
	case actionPromptDelete:
		b.handlePromptDelete(ctx, chatID, messageID, user, arg)
	case actionDeleteYes:
		b.handleDeleteYes(ctx, chatID, user, arg)
	case actionDeleteNo:
		b.editMenu(chatID, messageID, "Deletion canceled.", plantListMenu())
	case actionHistory:
		b.editMenu(chatID, messageID, "Choose how to browse the history:", historyMenu())
	case actionHistoryByPlant:
		b.handleHistoryByPlant(ctx, chatID, messageID, user)
	case actionHistoryByDate:
		b.handleHistoryByDate(ctx, chatID, messageID, user)
	case actionViewHistory:
		b.handleViewHistory(ctx, chatID, user, arg)
	case actionViewHistoryDate:
		b.handleViewHistoryDate(ctx, chatID, user, arg)
	default:
		b.logger.Warn("unknown callback action", "action", action)
	}
}

// handleScanControl writes the operator's desired command for their robot.
func (b *Bot) handleScanControl(ctx context.Context, chatID int64, user *store.User, cmd command.Command) {
	action := actionStartScan
	if cmd == command.Stop {
		action = actionStopScan
	}

	robot, err := b.records.RobotForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "You need to bind a robot first.", bindMenu())
			return
		}
		b.fail(chatID, action, err)
		return
	}

	if err := b.commands.SetDesired(ctx, robot.RobotID, cmd, command.ReasonManual); err != nil {
		b.fail(chatID, action, err)
		return
	}

	text := fmt.Sprintf("Robot %s will start scanning.", robot.RobotID)
	if cmd == command.Stop {
		text = fmt.Sprintf("Robot %s will stop scanning.", robot.RobotID)
	}
	b.sendMenu(chatID, text, mainMenu())
}

// showPlants lists the operator's active plants, one message per plant
// with its QR shortcut, then the plant actions menu.
func (b *Bot) showPlants(ctx context.Context, chatID int64, user *store.User) {
	plants, err := b.records.ActivePlants(ctx, user.ID)
	if err != nil {
		b.fail(chatID, actionViewPlants, err)
		return
	}

	if len(plants) == 0 {
		b.sendMenu(chatID, "You have no plants yet.", mainMenu())
		return
	}

	for _, p := range plants {
		text := fmt.Sprintf("Species: %s\nLocation: %s", p.Species, p.Location)
		b.sendMenu(chatID, text, viewQRMenu(p.PlantID))
	}

	b.sendMenu(chatID, plantActionsText, plantListMenu())
}

// handleViewQR re-shows a plant's QR label by copying the original label
// message back into the chat.
func (b *Bot) handleViewQR(ctx context.Context, chatID int64, user *store.User, plantID string) {
	plant, err := b.records.ActivePlant(ctx, user.ID, plantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "This plant no longer exists.", mainMenu())
			return
		}
		b.fail(chatID, actionViewQR, err)
		return
	}

	qrMessageID, err := b.records.QRMessageID(ctx, plantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "No QR code is stored for this plant.", mainMenu())
			return
		}
		b.fail(chatID, actionViewQR, err)
		return
	}

	label := tgbotapi.NewCopyMessage(chatID, chatID, qrMessageID)
	label.Caption = fmt.Sprintf("Species: %s\nLocation: %s\n%s",
		plant.Species, plant.Location, printQRText)
	b.send(label)

	b.sendMenu(chatID, chooseActionText, mainMenu())
}

func (b *Bot) handleDeleteList(ctx context.Context, chatID int64, messageID int, user *store.User) {
	plants, err := b.records.ActivePlants(ctx, user.ID)
	if err != nil {
		b.fail(chatID, actionDeletePlant, err)
		return
	}

	b.editMenu(chatID, messageID, "Choose a plant to delete:", deleteListMenu(plants))
}

// handlePromptDelete echoes a confirmation before anything is mutated.
func (b *Bot) handlePromptDelete(ctx context.Context, chatID int64, messageID int, user *store.User, plantID string) {
	plant, err := b.records.ActivePlant(ctx, user.ID, plantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "This plant no longer exists.", mainMenu())
			return
		}
		b.fail(chatID, actionPromptDelete, err)
		return
	}

	text := fmt.Sprintf("Do you really want to delete the plant %q?", plant.Species)
	b.editMenu(chatID, messageID, text, confirmDeleteMenu(plantID))
}

func (b *Bot) handleDeleteYes(ctx context.Context, chatID int64, user *store.User, plantID string) {
	if err := b.records.DeletePlant(ctx, user.ID, plantID); err != nil {
		b.fail(chatID, actionDeleteYes, err)
		return
	}

	b.showPlants(ctx, chatID, user)
}

func (b *Bot) handleHistoryByPlant(ctx context.Context, chatID int64, messageID int, user *store.User) {
	plants, err := b.records.ActivePlants(ctx, user.ID)
	if err != nil {
		b.fail(chatID, actionHistoryByPlant, err)
		return
	}

	b.editMenu(chatID, messageID, "Choose a plant to view its history:", historyByPlantMenu(plants))
}

func (b *Bot) handleHistoryByDate(ctx context.Context, chatID int64, messageID int, user *store.User) {
	robot, err := b.records.RobotForUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.sendMenu(chatID, "You need to bind a robot first.", bindMenu())
			return
		}
		b.fail(chatID, actionHistoryByDate, err)
		return
	}

	timestamps, err := b.records.ScanTimestamps(ctx, robot.RobotID, 10)
	if err != nil {
		b.fail(chatID, actionHistoryByDate, err)
		return
	}

	b.editMenu(chatID, messageID, "Choose a scan date and time:", historyByDateMenu(timestamps))
}

// handleViewHistory shows the latest scans of one plant.
func (b *Bot) handleViewHistory(ctx context.Context, chatID int64, user *store.User, plantID string) {
	scans, err := b.records.ScansByPlant(ctx, plantID, 5)
	if err != nil {
		b.fail(chatID, actionViewHistory, err)
		return
	}

	if len(scans) == 0 {
		b.sendMenu(chatID, "No scans yet.", mainMenu())
		return
	}

	b.sendScans(ctx, chatID, user, scans)
}

// handleViewHistoryDate shows every scan of one robot pass.
func (b *Bot) handleViewHistoryDate(ctx context.Context, chatID int64, user *store.User, label string) {
	ts, err := time.Parse(timestampLabel, label)
	if err != nil {
		b.fail(chatID, actionViewHistoryDate, err)
		return
	}

	robot, err := b.records.RobotForUser(ctx, user.ID)
	if err != nil {
		b.fail(chatID, actionViewHistoryDate, err)
		return
	}

	scans, err := b.records.ScansByTimestamp(ctx, robot.RobotID, ts)
	if err != nil {
		b.fail(chatID, actionViewHistoryDate, err)
		return
	}

	if len(scans) == 0 {
		b.sendMenu(chatID, "No scans at this time.", mainMenu())
		return
	}

	b.sendScans(ctx, chatID, user, scans)
}

// sendScans replies one photo per scan record, captioned with the plant
// and its findings, then re-shows the menu.
func (b *Bot) sendScans(ctx context.Context, chatID int64, user *store.User, scans []store.ScanRecord) {
	for _, scan := range scans {
		species, location := "unknown", "unknown"
		if scan.PlantID != "" {
			if plant, err := b.records.ActivePlant(ctx, user.ID, scan.PlantID); err == nil {
				species, location = plant.Species, plant.Location
			}
		}

		caption := fmt.Sprintf(scanCaptionText,
			species, location,
			diseaseSummary(scan.Diseases),
			scan.Timestamp.Format(timestampLabel),
		)
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(scan.ImageURL))
		photo.Caption = caption
		b.send(photo)
	}

	b.sendMenu(chatID, chooseActionText, mainMenu())
}

// diseaseSummary formats findings as "name (xx.x%)" joined by commas.
func diseaseSummary(findings store.FindingList) string {
	if len(findings) == 0 {
		return noDiseasesText
	}

	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", f.Name, f.Probability*100))
	}
	return strings.Join(parts, ", ")
}

// userFor resolves the operator record behind a chat update.
func (b *Bot) userFor(ctx context.Context, telegramUserID int64) (*store.User, error) {
	return b.records.UserByTelegramID(ctx, strconv.FormatInt(telegramUserID, 10))
}
