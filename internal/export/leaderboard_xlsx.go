package export

import (
	"fmt"
	"io"

	"drill-review-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

const leaderboardSheet = "Leaderboard"

var leaderboardHeaders = []string{"Rank", "Leader ID", "Leader", "Team", "Answered", "Approved", "Score"}

// WriteLeaderboard writes board as a single-sheet xlsx workbook to w.
func WriteLeaderboard(w io.Writer, board domain.Leaderboard) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(leaderboardSheet)
	if err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, header := range leaderboardHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(leaderboardSheet, cell, header); err != nil {
			return err
		}
	}
	for r, e := range board.Entries {
		row := []interface{}{e.Rank, e.LeaderID, e.Name, e.Team, e.Answered, e.Approved, e.Score}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(leaderboardSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// Filename is the attachment name used for a session's export.
func Filename(sessionID string) string {
	return fmt.Sprintf("leaderboard-%s.xlsx", sessionID)
}
