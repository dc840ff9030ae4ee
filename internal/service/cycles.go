package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"mold_monitor"
	"mold_monitor/internal/repository"
)

const (
	defaultCycleLimit = 100
	maxCycleLimit     = 1000
)

// CycleFilter narrows the cycle listing; zero values do not filter.
type CycleFilter struct {
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
}

type CycleService struct {
	cycles   repository.CycleRepo
	sessions repository.SessionRepo
}

func NewCycleService(cycles repository.CycleRepo, sessions repository.SessionRepo) *CycleService {
	return &CycleService{cycles: cycles, sessions: sessions}
}

func (s *CycleService) List(ctx context.Context, f CycleFilter) ([]mold_monitor.CycleSummary, error) {
	from, to := normalizeToUTC(f.From), normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultCycleLimit
	}
	if limit > maxCycleLimit {
		limit = maxCycleLimit
	}
	return s.cycles.List(ctx, repository.CycleFilter{
		SessionID: f.SessionID,
		From:      from,
		To:        to,
		Limit:     limit,
	})
}

func (s *CycleService) Get(ctx context.Context, id string) (mold_monitor.CycleRecord, error) {
	return s.cycles.Get(ctx, id)
}

// ExportCSV writes one cycle in the spreadsheet layout: a Cycle column, the
// time since cycle start and one column per channel.
func (s *CycleService) ExportCSV(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.cycles.Get(ctx, id)
	if err != nil {
		return err
	}
	channels, err := s.channels(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	cw := newCycleCSV(w, channels)
	if err := cw.header(); err != nil {
		return err
	}
	if err := cw.cycle(rec); err != nil {
		return err
	}
	return cw.flush()
}

// ExportSessionCSV writes every cycle of a session, oldest first.
func (s *CycleService) ExportSessionCSV(ctx context.Context, sessionID string, w io.Writer) error {
	info, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sums, err := s.cycles.List(ctx, repository.CycleFilter{SessionID: sessionID})
	if err != nil {
		return err
	}
	sort.Slice(sums, func(i, j int) bool { return sums[i].Number < sums[j].Number })

	cw := newCycleCSV(w, info.Channels)
	if err := cw.header(); err != nil {
		return err
	}
	for _, sum := range sums {
		rec, err := s.cycles.Get(ctx, sum.ID)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", sum.Number, err)
		}
		if err := cw.cycle(rec); err != nil {
			return err
		}
	}
	return cw.flush()
}

// channels returns the layout the cycle was recorded with. Cycles whose
// session header is gone still export, with bare CH<n> columns.
func (s *CycleService) channels(ctx context.Context, sessionID string) ([]mold_monitor.ChannelDescriptor, error) {
	if sessionID == "" {
		return nil, nil
	}
	info, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info.Channels, nil
}

type cycleCSV struct {
	w        *csv.Writer
	channels []mold_monitor.ChannelDescriptor
	indexes  []int
}

func newCycleCSV(w io.Writer, channels []mold_monitor.ChannelDescriptor) *cycleCSV {
	chs := append([]mold_monitor.ChannelDescriptor(nil), channels...)
	sort.Slice(chs, func(i, j int) bool { return chs[i].Index < chs[j].Index })
	return &cycleCSV{w: csv.NewWriter(w), channels: chs}
}

func (c *cycleCSV) header() error {
	row := []string{"Cycle", "Time(s)"}
	for _, d := range c.channels {
		row = append(row, columnName(d))
		c.indexes = append(c.indexes, d.Index)
	}
	if len(c.channels) == 0 {
		// filled from the first cycle
		return nil
	}
	return c.w.Write(row)
}

func (c *cycleCSV) cycle(rec mold_monitor.CycleRecord) error {
	if c.indexes == nil {
		c.indexes = sampleIndexes(rec)
		row := []string{"Cycle", "Time(s)"}
		for _, idx := range c.indexes {
			row = append(row, "CH"+strconv.Itoa(idx))
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	number := strconv.Itoa(rec.Number)
	for _, smp := range rec.Samples {
		row := make([]string, 0, len(c.indexes)+2)
		row = append(row, number, strconv.FormatFloat(smp.Timestamp.Sub(rec.StartTime).Seconds(), 'f', 6, 64))
		for _, idx := range c.indexes {
			v, ok := smp.Values[idx]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (c *cycleCSV) flush() error {
	c.w.Flush()
	return c.w.Error()
}

func columnName(d mold_monitor.ChannelDescriptor) string {
	switch d.Type {
	case mold_monitor.ChannelTemperature:
		return fmt.Sprintf("CH%d_Temp[%s]", d.Input, d.Type.Unit())
	case mold_monitor.ChannelPressure:
		return fmt.Sprintf("CH%d_Pressure[%s]", d.Input, d.Type.Unit())
	case mold_monitor.ChannelTrigger:
		return fmt.Sprintf("CH%d_Trigger[%s]", d.Input, d.Type.Unit())
	default:
		return fmt.Sprintf("CH%d", d.Input)
	}
}

func sampleIndexes(rec mold_monitor.CycleRecord) []int {
	out := []int{}
	if len(rec.Samples) == 0 {
		return out
	}
	for idx := range rec.Samples[0].Values {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
