package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"quizrag/internal/domain"
)

// Writer persists the two batch output tables, answers and timings,
// appending and flushing one row per processed question so an
// interrupted run loses nothing already recorded.
type Writer struct {
	answersFile *os.File
	timingFile  *os.File
	answers     *csv.Writer
	timing      *csv.Writer
}

// NewWriter opens both tables for appending, writing headers when a
// file is new or empty.
func NewWriter(answerPath, timingPath string) (*Writer, error) {
	answersFile, answers, err := openTable(answerPath, []string{"qid", "answer"})
	if err != nil {
		return nil, err
	}
	timingFile, timing, err := openTable(timingPath, []string{"qid", "seconds"})
	if err != nil {
		answersFile.Close()
		return nil, err
	}

	return &Writer{
		answersFile: answersFile,
		timingFile:  timingFile,
		answers:     answers,
		timing:      timing,
	}, nil
}

func openTable(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

// Append writes one record to both tables and flushes them to disk.
func (w *Writer) Append(rec domain.InferenceRecord) error {
	if err := w.answers.Write([]string{rec.QuestionID, rec.Answer}); err != nil {
		return err
	}
	seconds := fmt.Sprintf("%.3f", rec.Elapsed.Seconds())
	if err := w.timing.Write([]string{rec.QuestionID, seconds}); err != nil {
		return err
	}

	w.answers.Flush()
	w.timing.Flush()
	if err := w.answers.Error(); err != nil {
		return err
	}
	if err := w.timing.Error(); err != nil {
		return err
	}

	if err := w.answersFile.Sync(); err != nil {
		return err
	}
	return w.timingFile.Sync()
}

func (w *Writer) Close() error {
	w.answers.Flush()
	w.timing.Flush()
	err := w.answersFile.Close()
	if err2 := w.timingFile.Close(); err == nil {
		err = err2
	}
	return err
}

// Processed reads the question ids already present in an answers file,
// so a re-run can skip them. A missing file means nothing is processed.
func Processed(answerPath string) (map[string]bool, error) {
	processed := make(map[string]bool)

	f, err := os.Open(answerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", answerPath, err)
		}
		if first {
			first = false // header
			continue
		}
		if len(row) >= 1 && row[0] != "" {
			processed[row[0]] = true
		}
	}
	return processed, nil
}
