package cronometer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// DayRecord is one day of nutrition totals as the export helper emits
// it. Every field is a pointer so a field the helper failed to write
// is distinguishable from a legitimate zero.
type DayRecord struct {
	Date     *string  `json:"date"`
	Calories *float64 `json:"calories"`
	Fat      *float64 `json:"fat"`
	Carbs    *float64 `json:"carbs"`
	Protein  *float64 `json:"protein"`
}

// Bridge runs the cronometer-export helper binary and parses its
// output. Cronometer has no public API; the helper logs in with the
// account password and scrapes the CSV export, so it runs as a
// separate process with a hard deadline.
type Bridge struct {
	helperPath string
	timeout    time.Duration
}

// NewBridge creates a bridge around the helper at path. A zero timeout
// falls back to one minute.
func NewBridge(helperPath string, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Bridge{helperPath: helperPath, timeout: timeout}
}

// Export invokes the helper for the window and returns the parsed day
// records. Output that fails to parse, or parses but carries a missing
// or malformed field, discards the whole batch: partial trust in a
// scraper's output is worse than none.
func (b *Bridge) Export(ctx context.Context, cred *core.Credential, window core.Window) ([]DayRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.helperPath,
		"-username", cred.Username,
		"-password", cred.Password,
		"-start", window.StartDate(),
		"-end", window.EndDate(),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: export helper exceeded %s", core.ErrBridgeTimeout, b.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", core.ErrBridgeFailed, msg)
	}

	var records []DayRecord
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		return nil, fmt.Errorf("%w: helper output is not a JSON array: %v", core.ErrBadResponse, err)
	}

	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", core.ErrBadResponse, i, err)
		}
	}

	return records, nil
}

func validateRecord(rec DayRecord) error {
	if rec.Date == nil {
		return errors.New("missing date")
	}
	if _, err := time.Parse("2006-01-02", *rec.Date); err != nil {
		return fmt.Errorf("malformed date %q", *rec.Date)
	}
	if rec.Calories == nil || rec.Fat == nil || rec.Carbs == nil || rec.Protein == nil {
		return fmt.Errorf("missing macro fields for %s", *rec.Date)
	}
	return nil
}
