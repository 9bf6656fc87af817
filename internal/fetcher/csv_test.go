package fetcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan Row, errCh <-chan error) ([]Row, error) {
	t.Helper()
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_HeaderKeyed(t *testing.T) {
	input := "\ufeffident,Name,latitude_deg\nKPAO,Palo Alto,37.46\nKSQL,San Carlos\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "KPAO", rows[0].Get("ident"))
	assert.Equal(t, "Palo Alto", rows[0].Get("name"))
	assert.Equal(t, "37.46", rows[0].Get("latitude_deg"))
	assert.Equal(t, 2, rows[0].Line)

	// short row
	assert.Equal(t, "", rows[1].Get("latitude_deg"))
	assert.True(t, rows[1].Has("latitude_deg"))
	assert.False(t, rows[1].Has("elevation_ft"))
	assert.Equal(t, 3, rows[1].Line)
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b\n1|2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: '|'})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].Get("b"))
}

func TestStreamCSV_TrimSpaceAndComment(t *testing.T) {
	input := "a,b\n# skipped\n  x , y  \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true, Comment: '#'})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"x", "y"}, rows[0].Fields)
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "a,b\n1,say \"hi\" there\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{LazyQuotes: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `say "hi" there`, rows[0].Get("b"))
}

func TestStreamCSV_BadQuoteReportsLine(t *testing.T) {
	input := "a,b\n1,2\n3,\"bad\"x\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Len(t, rows, 1)
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id\n")
	for range 10000 {
		sb.WriteString("x\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	<-rowCh
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-rowCh:
			if !ok {
				err := <-errCh
				assert.Error(t, err)
				return
			}
		case <-deadline:
			t.Fatal("stream did not stop after cancel")
		}
	}
}
