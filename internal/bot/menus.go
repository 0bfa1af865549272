package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"agrohub.dev/garden-hub/internal/store"
)

// Callback actions for the inline menus. Parameterized actions carry the
// argument after a colon, e.g. "view_qr:<plant id>".
const (
	actionStartScan       = "start_scan"
	actionStopScan        = "stop_scan"
	actionAddPlant        = "add_plant"
	actionCancelAdd       = "cancel_add"
	actionViewPlants      = "view_plants"
	actionViewQR          = "view_qr"
	actionDeletePlant     = "delete_plant"
	actionDeleteBack      = "delete_back"
	actionPromptDelete    = "prompt_delete"
	actionDeleteYes       = "delete_yes"
	actionDeleteNo        = "delete_no"
	actionHistory         = "history"
	actionHistoryByPlant  = "history_by_plant"
	actionHistoryByDate   = "history_by_date"
	actionViewHistory     = "view_history"
	actionViewHistoryDate = "view_history_date"
	actionBindRobot       = "bind_robot"
	actionReturnMenu      = "return_menu"
)

// timestampLabel is how scan pass timestamps are shown and round-tripped
// through callback data.
const timestampLabel = "02.01.2006 15:04:05"

const (
	chooseActionText = "Choose an action:"
	plantActionsText = "What would you like to do with your plants?"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start scanning", actionStartScan),
			tgbotapi.NewInlineKeyboardButtonData("Stop scanning", actionStopScan),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Add a new plant", actionAddPlant),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("My plants", actionViewPlants),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Scan history", actionHistory),
		),
	)
}

func bindMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Bind a robot", actionBindRobot),
		),
	)
}

func cancelAddMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", actionCancelAdd),
		),
	)
}

func plantListMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to menu", actionReturnMenu),
			tgbotapi.NewInlineKeyboardButtonData("Delete a plant", actionDeletePlant),
		),
	)
}

func viewQRMenu(plantID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Show plant QR code", actionViewQR+":"+plantID),
		),
	)
}

func deleteListMenu(plants []store.Plant) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plants)+1)
	for _, p := range plants {
		label := fmt.Sprintf("%s (%s)", p.Species, p.Location)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, actionPromptDelete+":"+p.PlantID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", actionDeleteBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmDeleteMenu(plantID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", actionDeleteYes+":"+plantID),
			tgbotapi.NewInlineKeyboardButtonData("No", actionDeleteNo),
		),
	)
}

func historyMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("By plant", actionHistoryByPlant),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("By scan date", actionHistoryByDate),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back to menu", actionReturnMenu),
		),
	)
}

func historyByPlantMenu(plants []store.Plant) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plants)+1)
	for _, p := range plants {
		label := fmt.Sprintf("%s (%s)", p.Species, p.Location)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, actionViewHistory+":"+p.PlantID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", actionHistory),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func historyByDateMenu(timestamps []time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		label := ts.Format(timestampLabel)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, actionViewHistoryDate+":"+label),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", actionHistory),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
