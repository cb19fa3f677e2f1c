package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Keys under which State is persisted.
const (
	KeyLastSubmitTime    = "lastSubmitTime"
	KeyHourlyCount       = "hourlyCount"
	KeyHourlyWindowStart = "hourlyWindowStart"
)

// Store is the durable string key-value storage backing the gate.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// BatchStore is implemented by stores that can write several keys at once.
type BatchStore interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// LoadState reads State from s. Absent keys read as zero; unparseable values
// are logged and read as zero.
func LoadState(ctx context.Context, s Store, log *slog.Logger) (State, error) {
	var st State
	var err error
	if st.LastSubmitTime, err = loadInt(ctx, s, KeyLastSubmitTime, log); err != nil {
		return State{}, err
	}
	if st.HourlyWindowStart, err = loadInt(ctx, s, KeyHourlyWindowStart, log); err != nil {
		return State{}, err
	}
	count, err := loadInt(ctx, s, KeyHourlyCount, log)
	if err != nil {
		return State{}, err
	}
	if count < 0 {
		count = 0
	}
	st.HourlyCount = int(count)
	return st, nil
}

// SaveState writes every field of st to s.
func SaveState(ctx context.Context, s Store, st State) error {
	values := map[string]string{
		KeyLastSubmitTime:    strconv.FormatInt(st.LastSubmitTime, 10),
		KeyHourlyWindowStart: strconv.FormatInt(st.HourlyWindowStart, 10),
		KeyHourlyCount:       strconv.Itoa(st.HourlyCount),
	}
	if b, ok := s.(BatchStore); ok {
		if err := b.SetMany(ctx, values); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		return nil
	}
	for _, k := range []string{KeyLastSubmitTime, KeyHourlyWindowStart, KeyHourlyCount} {
		if err := s.Set(ctx, k, values[k]); err != nil {
			return fmt.Errorf("save state %s: %w", k, err)
		}
	}
	return nil
}

func loadInt(ctx context.Context, s Store, key string, log *slog.Logger) (int64, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load state %s: %w", key, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn("ignoring unreadable rate-limit value", "key", key, "value", raw)
		return 0, nil
	}
	return n, nil
}
