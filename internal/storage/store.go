package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/ufo"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Config      config.Config      `json:"config"`
	Outcome     string             `json:"outcome"`
	Phase       string             `json:"phase"`
	Ticks       uint64             `json:"ticks"`
	FlightTime  float64            `json:"flight_time"`
	Distance    float64            `json:"distance"`
	MaxAltitude float64            `json:"max_altitude"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Summarize fills the flight figures of meta from states.
func (meta *RunMetadata) Summarize(states []ufo.State) {
	if len(states) == 0 {
		return
	}
	last := states[len(states)-1]
	meta.FlightTime = last.FlightTime
	meta.Distance = last.Dist
	for _, st := range states {
		if st.Z > meta.MaxAltitude {
			meta.MaxAltitude = st.Z
		}
	}
}

// Save writes a new run and returns its id. meta.ID and meta.Timestamp are
// filled in when empty.
func (s *Store) Save(meta RunMetadata, states []ufo.State) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := s.RunDir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(ufo.FieldNames); err != nil {
		return "", err
	}
	row := make([]string, len(ufo.FieldNames))
	for _, st := range states {
		for i, v := range st.Fields() {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// RunDir is the directory holding the files of run id.
func (s *Store) RunDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(id), "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return &meta, nil
}

func (s *Store) LoadStates(id string) ([]ufo.State, error) {
	file, err := os.Open(filepath.Join(s.RunDir(id), "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(ufo.FieldNames)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if len(records) < 2 {
		return []ufo.State{}, nil
	}

	states := make([]ufo.State, 0, len(records)-1)
	fields := make([]float64, len(ufo.FieldNames))
	for line, record := range records[1:] {
		for j, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: line %d, %s: %w", id, line+2, ufo.FieldNames[j], err)
			}
			fields[j] = v
		}
		states = append(states, ufo.FromFields(fields))
	}
	return states, nil
}
