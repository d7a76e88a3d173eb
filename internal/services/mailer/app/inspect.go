package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	platformgrpc "github.com/iuprojects/lcnotes/internal/platform/grpc"
	"github.com/iuprojects/lcnotes/internal/services/mailer/domain"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage"
	"github.com/iuprojects/lcnotes/internal/services/mailer/storage/sqlite"
)

// DeliveryQuery selects delivery log entries to print. ID wins over Limit.
type DeliveryQuery struct {
	ID    string
	Limit int
}

type deliveryReader interface {
	GetDelivery(ctx context.Context, id string) (storage.DeliveryRecord, error)
	ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryRecord, error)
}

// InspectDeliveries opens the delivery log at dbPath and prints the selected
// entries to w, one per line.
func InspectDeliveries(ctx context.Context, dbPath string, query DeliveryQuery, w io.Writer) error {
	if strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("delivery log path is required")
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open delivery log: %w", err)
	}
	defer store.Close()
	return ReportDeliveries(ctx, store, query, w)
}

// ReportDeliveries prints the entries query selects from reader.
func ReportDeliveries(ctx context.Context, reader deliveryReader, query DeliveryQuery, w io.Writer) error {
	var records []storage.DeliveryRecord
	if id := strings.TrimSpace(query.ID); id != "" {
		record, err := reader.GetDelivery(ctx, id)
		if err != nil {
			return fmt.Errorf("delivery %s: %w", id, err)
		}
		records = append(records, record)
	} else {
		listed, err := reader.ListDeliveries(ctx, query.Limit)
		if err != nil {
			return err
		}
		records = listed
	}

	for _, record := range records {
		if _, err := fmt.Fprintln(w, formatDelivery(record)); err != nil {
			return fmt.Errorf("write delivery: %w", err)
		}
	}
	return nil
}

func formatDelivery(record storage.DeliveryRecord) string {
	fields := []string{
		record.ID,
		record.CreatedAt.UTC().Format(time.RFC3339),
		string(record.Status),
		record.Transport,
		"trigger=" + domain.FormatEventTime(record.TriggerTime),
		"to=" + strings.Join(record.Recipients, ","),
		strconv.Quote(record.Subject),
	}
	if record.Status == storage.DeliveryStatusFailed {
		if record.Permanent {
			fields = append(fields, "permanent")
		}
		fields = append(fields, "error="+strconv.Quote(record.LastError))
	}
	return strings.Join(fields, " ")
}

// CheckScheduler waits until the local schedule loop on port reports SERVING.
// Container health checks run it against a schedule-mode process.
func CheckScheduler(ctx context.Context, port int, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	return platformgrpc.CheckHealth(ctx, addr, SchedulerHealthService)
}
