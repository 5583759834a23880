// Package qlog writes the question/answer audit logs: one CSV of every
// answered question with token spend and latency, and one CSV of questions
// the assistant refused or flagged as low confidence. The unanswered log is
// the curation queue — it shows exactly which FAQ entries are missing.
package qlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// AnsweredFile is the answered-questions log name under the log dir.
	AnsweredFile = "qna_log.csv"
	// UnansweredFile is the refused/flagged-questions log name.
	UnansweredFile = "unanswered.csv"

	// previewLimit caps the stored answer preview length in runes.
	previewLimit = 160
	// maxScores caps how many retrieval scores are recorded per row.
	maxScores = 3
)

// answeredHeader and unansweredHeader are written once when a log file is
// first created. tokensColumn indexes total_tokens in answeredHeader.
var (
	answeredHeader   = []string{"ts", "question", "top_scores", "answer_preview", "total_tokens", "latency_s"}
	unansweredHeader = []string{"ts", "question", "top_scores"}
)

const tokensColumn = 4

// Logger appends rows to the audit CSVs. Safe for concurrent use.
type Logger struct {
	mu             sync.Mutex
	answeredPath   string
	unansweredPath string

	// now is swappable for tests.
	now func() time.Time
}

// New returns a Logger writing under dir, creating it if needed.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("qlog: failed to create log dir %s: %w", dir, err)
	}
	return &Logger{
		answeredPath:   filepath.Join(dir, AnsweredFile),
		unansweredPath: filepath.Join(dir, UnansweredFile),
		now:            time.Now,
	}, nil
}

// Answered records a successfully answered question.
func (l *Logger) Answered(question string, scores []float32, answer string, totalTokens int, latency time.Duration) error {
	row := []string{
		l.timestamp(),
		question,
		formatScores(scores),
		preview(answer),
		fmt.Sprintf("%d", totalTokens),
		fmt.Sprintf("%.3f", latency.Seconds()),
	}
	return l.append(l.answeredPath, answeredHeader, row)
}

// Unanswered records a question the assistant refused or answered with low
// confidence, along with the retrieval scores that led there.
func (l *Logger) Unanswered(question string, scores []float32) error {
	row := []string{l.timestamp(), question, formatScores(scores)}
	return l.append(l.unansweredPath, unansweredHeader, row)
}

// TokensToday sums total_tokens over answered rows stamped with today's UTC
// date. A missing log file counts as zero spend. Malformed rows are skipped
// rather than failing the whole scan — a corrupt log line must not block
// answering.
func (l *Logger) TokensToday() (int, error) {
	f, err := os.Open(l.answeredPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("qlog: failed to open answered log: %w", err)
	}
	defer f.Close()

	today := l.now().UTC().Format("2006-01-02")
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	total := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(rec) <= tokensColumn || rec[0] == "ts" {
			continue
		}
		if !strings.HasPrefix(rec[0], today) {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(rec[tokensColumn]), "%d", &n); err == nil {
			total += n
		}
	}
	return total, nil
}

// AnsweredPath returns the answered log location.
func (l *Logger) AnsweredPath() string { return l.answeredPath }

// append opens the target log file, writes the header if the file is new,
// and appends one row.
func (l *Logger) append(path string, header, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("qlog: failed to open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("qlog: failed to write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("qlog: failed to write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("qlog: failed to flush %s: %w", path, err)
	}
	return nil
}

// timestamp returns the current UTC time in RFC 3339-style ISO format.
func (l *Logger) timestamp() string {
	return l.now().UTC().Format("2006-01-02T15:04:05")
}

// formatScores renders up to maxScores retrieval scores rounded to three
// decimals, e.g. "[0.534, 0.412, 0.388]".
func formatScores(scores []float32) string {
	if len(scores) > maxScores {
		scores = scores[:maxScores]
	}
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.3f", s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// preview truncates an answer to previewLimit runes. Every non-empty
// preview carries a trailing ellipsis, truncated or not, so the column is
// never mistaken for the full answer.
func preview(answer string) string {
	if answer == "" {
		return ""
	}
	runes := []rune(answer)
	if len(runes) > previewLimit {
		runes = runes[:previewLimit]
	}
	return string(runes) + "…"
}
