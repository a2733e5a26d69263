// internal/pkg/export/movements.go
package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/household-be/internal/core/domain"
)

// ContentTypeXLSX is the media type of rendered workbooks
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const pageSize = 500

var movementHeaders = []string{
	"Logged At",
	"Movement ID",
	"Item ID",
	"Type",
	"Source",
	"Destination",
	"Quantity",
	"Rules Evaluated",
	"Warnings",
	"Correlation ID",
}

// MovementLister reads the movement log newest first
type MovementLister interface {
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error)
}

// CollectMovements pages through the log until the filter is exhausted or
// max entries were read. Pages are chained on the inclusive To bound, so
// entries sharing a timestamp with the page edge are deduplicated by ID.
func CollectMovements(ctx context.Context, lister MovementLister, filter domain.MovementFilter, max int) ([]domain.MovementLogEntry, error) {
	seen := make(map[uuid.UUID]struct{})
	var out []domain.MovementLogEntry

	for {
		page := filter
		page.Limit = pageSize
		entries, err := lister.ListMovements(ctx, page)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, e := range entries {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
			added++
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}

		if len(entries) < pageSize || added == 0 {
			return out, nil
		}
		oldest := entries[len(entries)-1].CreatedAt
		filter.To = &oldest
	}
}

// MovementWorkbook renders entries into a single sheet workbook
func MovementWorkbook(entries []domain.MovementLogEntry, sheetName string) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range movementHeaders {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for i := range entries {
		row := sheet.AddRow()
		for _, value := range movementRow(&entries[i]) {
			row.AddCell().Value = value
		}
	}

	sheet.SetColWidth(1, len(movementHeaders), 20)

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer.Bytes(), nil
}

func movementRow(e *domain.MovementLogEntry) []string {
	return []string{
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.ID.String(),
		e.ItemID.String(),
		string(e.Type),
		idOrEmpty(e.SourceID),
		idOrEmpty(e.DestinationID),
		strconv.FormatInt(e.Quantity, 10),
		strings.Join(e.RulesEvaluated, ", "),
		strings.Join(e.Warnings, "; "),
		e.CorrelationID,
	}
}

func idOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// ArchiveKey is the object key of the archive covering day
func ArchiveKey(prefix string, day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s.xlsx",
		strings.TrimSuffix(prefix, "/"), day.Year(), int(day.Month()), day.Format("2006-01-02"))
}
