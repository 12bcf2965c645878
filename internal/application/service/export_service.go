package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/content-workflow/internal/application/audit"
)

const exportSheet = "Audit Log"

var exportHeaders = []string{"#", "Date (UTC)", "Action", "User", "Comment"}

// ExportService renders audit trails as xlsx workbooks. Restarting a workflow
// purges its history, so an export is the way to keep a copy.
type ExportService interface {
	ExportHistory(ctx context.Context, contentItemID, workflowID int64, w io.Writer) error
}

type exportServiceImpl struct {
	history HistoryService
	logger  Logger
}

// NewExportService creates a new ExportService
func NewExportService(history HistoryService, logger Logger) ExportService {
	return &exportServiceImpl{
		history: history,
		logger:  logger,
	}
}

func (s *exportServiceImpl) ExportHistory(ctx context.Context, contentItemID, workflowID int64, w io.Writer) error {
	h, err := s.history.GetHistory(ctx, contentItemID, workflowID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetCellValue(exportSheet, "A1", fmt.Sprintf("%s / %s", h.ContentItem.Title, h.Workflow.Name)); err != nil {
		return fmt.Errorf("write title: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(f, 2, toCells(exportHeaders)); err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A2", "E2", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, e := range h.Entries {
		row := []interface{}{
			i + 1,
			e.Date.UTC().Format(audit.DateLayout),
			e.Action,
			e.UserName,
			e.Comment,
		}
		if err := writeRow(f, i+3, row); err != nil {
			return err
		}
	}

	for col, width := range map[string]float64{"B": 36, "C": 20, "D": 24, "E": 80} {
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("Audit history exported",
		"content_item_id", h.ContentItem.ID,
		"workflow_id", h.Workflow.ID,
		"entries", len(h.Entries),
	)
	return nil
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
