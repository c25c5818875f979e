package storage

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

// TimestampLayout names run directories and files.
const TimestampLayout = "20060102_150405"

const snapshotFile = "latest.json"

// ErrNotFound is returned by GetRecordByID for an unknown id.
var ErrNotFound = errors.New("storage: record not found")

// Storage handles persistence of run results and snapshots
type Storage struct {
	dataDir string
}

// New creates a new Storage instance rooted at dataDir
func New(dataDir string) (*Storage, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, eris.Wrap(err, "storage: home directory")
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create %s", dataDir)
	}
	return &Storage{dataDir: dataDir}, nil
}

// Dir returns the root directory.
func (s *Storage) Dir() string { return s.dataDir }

func (s *Storage) countryDir(country string) string {
	return filepath.Join(s.dataDir, strings.ToLower(country))
}

// RunDir returns the directory of the run started at at.
func (s *Storage) RunDir(country string, at time.Time) string {
	return filepath.Join(s.countryDir(country), at.Format(TimestampLayout))
}

// Run is what SaveRun writes.
type Run struct {
	Country    string
	StartedAt  time.Time
	RunID      string
	Records    []*event.Record
	Rejections []*normalize.Rejection
}

// summary is the run's summary file.
type summary struct {
	RunID      string         `json:"run_id"`
	Country    string         `json:"country"`
	StartedAt  time.Time      `json:"started_at"`
	Records    int            `json:"records"`
	Rejections int            `json:"rejections"`
	Reasons    map[string]int `json:"reasons"`
	Sources    map[string]int `json:"records_per_source"`
}

// SaveRun writes the records, rejections and summary of a run and returns
// the path of the events file.
func (s *Storage) SaveRun(run Run) (string, error) {
	dir := s.RunDir(run.Country, run.StartedAt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "storage: create %s", dir)
	}
	ts := run.StartedAt.Format(TimestampLayout)

	records := run.Records
	if records == nil {
		records = []*event.Record{}
	}
	eventsPath := filepath.Join(dir, "events_"+ts+".json")
	if err := writeJSON(eventsPath, records); err != nil {
		return "", err
	}

	rejectionsPath := filepath.Join(dir, "rejections_"+ts+".jsonl")
	if err := writeLines(rejectionsPath, run.Rejections); err != nil {
		return "", err
	}

	sum := summary{
		RunID:      run.RunID,
		Country:    run.Country,
		StartedAt:  run.StartedAt,
		Records:    len(run.Records),
		Rejections: len(run.Rejections),
		Reasons:    make(map[string]int),
		Sources:    make(map[string]int),
	}
	for reason, n := range normalize.Summarize(run.Rejections) {
		sum.Reasons[string(reason)] = n
	}
	for _, r := range run.Records {
		sum.Sources[r.SourceID]++
	}
	if err := writeJSON(filepath.Join(dir, "summary_"+ts+".json"), sum); err != nil {
		return "", err
	}

	zap.L().Info("run saved",
		zap.String("dir", dir),
		zap.Int("records", len(run.Records)),
		zap.Int("rejections", len(run.Rejections)))
	return eventsPath, nil
}

// LoadRecords reads an events file written by SaveRun.
func LoadRecords(path string) ([]*event.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: read %s", path)
	}
	var records []*event.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "storage: parse %s", path)
	}
	return records, nil
}

// LoadSnapshot loads the country's latest snapshot. A missing file gives
// an empty snapshot.
func (s *Storage) LoadSnapshot(country string) (*event.Snapshot, error) {
	path := filepath.Join(s.countryDir(country), snapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return event.NewSnapshot(), nil
		}
		return nil, eris.Wrapf(err, "storage: read snapshot %s", path)
	}

	var snap event.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "storage: parse snapshot %s", path)
	}
	if snap.Records == nil {
		snap.Records = make(map[string]*event.Record)
	}
	return &snap, nil
}

// SaveSnapshot replaces the country's latest snapshot.
func (s *Storage) SaveSnapshot(country string, snap *event.Snapshot) error {
	if snap.UpdatedAt == "" {
		snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := os.MkdirAll(s.countryDir(country), 0o755); err != nil {
		return eris.Wrapf(err, "storage: create %s", s.countryDir(country))
	}
	return writeJSON(filepath.Join(s.countryDir(country), snapshotFile), snap)
}

// CreateSnapshotFromRecords saves the records of a run as the latest snapshot.
func (s *Storage) CreateSnapshotFromRecords(country string, records []*event.Record, at time.Time) error {
	return s.SaveSnapshot(country, event.CreateSnapshot(records, at.UTC().Format(time.RFC3339)))
}

// GetRecordByID looks a record up in the country's latest snapshot.
func (s *Storage) GetRecordByID(country, id string) (*event.Record, error) {
	snap, err := s.LoadSnapshot(country)
	if err != nil {
		return nil, err
	}
	if rec, ok := snap.Records[id]; ok {
		return rec, nil
	}
	return nil, eris.Wrapf(ErrNotFound, "storage: %s", id)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "storage: encode %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "storage: write %s", path)
	}
	return nil
}

func writeLines(path string, rejections []*normalize.Rejection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "storage: create %s", path)
	}
	enc := json.NewEncoder(f)
	for _, r := range rejections {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return eris.Wrapf(err, "storage: encode rejection %s-%s", r.SourceID, r.EventID)
		}
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "storage: close %s", path)
	}
	return nil
}
