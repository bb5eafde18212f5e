package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

const exportSheetName = "Submissions"

var exportHeaders = []string{
	"Anonymous ID", "Status", "Submitted At", "Corrected At", "Score", "Max Score", "Feedback", "Artifact URL",
}

// Export renders every submission of an owned item as an xlsx workbook. The
// learner is identified by the anonymous id only.
func (s *submissionService) Export(ctx context.Context, principal identity.Principal, itemID uint) ([]byte, string, error) {
	teacher, err := authorize(principal, identity.CapCorrectWork)
	if err != nil {
		return nil, "", err
	}

	item, err := s.ownedItem(ctx, teacher.UserID, itemID)
	if err != nil {
		return nil, "", err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{ItemID: uintPtr(item.ID)})
	if err != nil {
		return nil, "", err
	}

	content, err := renderSubmissionWorkbook(submissions)
	if err != nil {
		return nil, "", err
	}

	return content, exportFileName(item), nil
}

func renderSubmissionWorkbook(submissions []models.Submission) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, header := range exportHeaders {
		if err := setCell(f, col+1, 1, header); err != nil {
			return nil, err
		}
	}

	for i, submission := range submissions {
		row := []interface{}{
			submission.AnonymousID,
			submission.Status,
			submission.SubmittedAt.UTC().Format(time.RFC3339),
			formatOptionalTime(submission.CorrectedAt),
			optionalFloat(submission.Score),
			optionalFloat(submission.MaxScore),
			stringValue(submission.Feedback),
			submission.ArtifactURL,
		}
		for col, value := range row {
			if err := setCell(f, col+1, i+2, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(exportSheetName, cell, value)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func optionalFloat(value *float64) interface{} {
	if value == nil {
		return ""
	}
	return *value
}

func exportFileName(item models.AssignableItem) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(item.Title))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "item"
	}
	return fmt.Sprintf("%s-%d-submissions.xlsx", slug, item.ID)
}
