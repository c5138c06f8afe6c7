package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func gradeDataset() Dataset {
	return Dataset{
		Title:   "Grade sheet",
		Headers: []string{"student", "final"},
		Rows: []map[string]string{
			{"student": "s1@uni.edu", "final": "80.00"},
			{"student": "s2@uni.edu"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(gradeDataset())
	require.NoError(t, err)
	assert.Equal(t, "student,final\ns1@uni.edu,80.00\ns2@uni.edu,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)

	out, err = NewCSVExporter(WithExcelBOM()).Render(gradeDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("\xEF\xBB\xBFstudent,final\n")))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(gradeDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(gradeDataset(), "Grades")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{"Grades"}, f.GetSheetList())
	v, err := f.GetCellValue("Grades", "B3")
	require.NoError(t, err)
	assert.Equal(t, "80.00", v)
}

func TestICSExporterRender(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	out, err := NewICSExporter().Render("Council A", []CalendarEvent{{
		UID:      "sched-1",
		Summary:  "Thesis defense",
		Location: "Room 101",
		Start:    start,
		End:      start.Add(2 * time.Hour),
	}})
	require.NoError(t, err)

	body := string(out)
	assert.True(t, strings.Contains(body, "BEGIN:VEVENT"))
	assert.True(t, strings.Contains(body, "UID:sched-1"))
	assert.True(t, strings.Contains(body, "DTSTART:20260601T090000Z"))

	_, err = NewICSExporter().Render("", []CalendarEvent{{Summary: "x"}})
	assert.Error(t, err)
}
