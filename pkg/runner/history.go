package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	fileutil "github.com/projectdiscovery/utils/file"
)

// Default probe history file
const defaultHistoryFileName = "history.json"

func DefaultHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultHistoryFileName
	}
	return filepath.Join(home, ".config", "ikex", defaultHistoryFileName)
}

// ProbeHistory tracks previously probed services
type ProbeHistory struct {
	mutex        sync.RWMutex
	filePath     string
	format       string
	ttl          time.Duration
	entries      map[string]*HistoryEntry
	existUnsaved bool
}

// HistoryEntry represents a single probe record
type HistoryEntry struct {
	Target     string    `json:"target"`
	IP         string    `json:"ip,omitempty"`
	FirstProbe time.Time `json:"first_probe"`
	LastProbe  time.Time `json:"last_probe"`
	ProbeCount int       `json:"probe_count"`
}

// NewProbeHistory creates a new probe history tracker. The on disk
// format follows the file extension, json or a pipe separated text
// layout.
func NewProbeHistory(filePath string, ttl time.Duration) (*ProbeHistory, error) {
	format := "txt"
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		format = "json"
	}

	ph := &ProbeHistory{
		filePath: filePath,
		format:   format,
		ttl:      ttl,
		entries:  make(map[string]*HistoryEntry),
	}

	if err := ph.Load(); err != nil {
		return nil, err
	}

	return ph, nil
}

// IsProbed checks if a target was previously probed
func (ph *ProbeHistory) IsProbed(target string) bool {
	ph.mutex.RLock()
	defer ph.mutex.RUnlock()

	entry, exists := ph.entries[target]
	if !exists {
		return false
	}

	// Check TTL
	if ph.ttl > 0 && time.Since(entry.LastProbe) > ph.ttl {
		return false // TTL expired, probe again
	}

	return true
}

// Record adds a target to probe history (without immediate save)
func (ph *ProbeHistory) Record(target, ip string) error {
	ph.mutex.Lock()
	defer ph.mutex.Unlock()

	now := time.Now()
	if entry, exists := ph.entries[target]; exists {
		entry.LastProbe = now
		entry.ProbeCount++
	} else {
		ph.entries[target] = &HistoryEntry{
			Target:     target,
			IP:         ip,
			FirstProbe: now,
			LastProbe:  now,
			ProbeCount: 1,
		}
	}

	ph.existUnsaved = true
	return nil
}

// Load reads probe history from disk
func (ph *ProbeHistory) Load() error {
	if !fileutil.FileExists(ph.filePath) {
		return nil // No history file yet, that's fine
	}

	file, err := os.Open(ph.filePath)
	if err != nil {
		return fmt.Errorf("could not open probe history file: %w", err)
	}
	defer file.Close()

	switch ph.format {
	case "json":
		return ph.loadJSON(file)
	case "txt", "":
		return ph.loadTXT(file)
	default:
		return fmt.Errorf("unsupported format: %s", ph.format)
	}
}

// Save writes probe history to disk, dropping expired entries so the
// file does not grow unbounded
func (ph *ProbeHistory) Save() error {
	ph.mutex.Lock()
	defer ph.mutex.Unlock()

	if !ph.existUnsaved {
		return nil // no changes to save
	}

	if ph.ttl > 0 {
		for target, entry := range ph.entries {
			if time.Since(entry.LastProbe) > ph.ttl {
				delete(ph.entries, target)
			}
		}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(ph.filePath)
	if dir != "" && dir != "." && !fileutil.FolderExists(dir) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create directory: %w", err)
		}
	}

	file, err := os.Create(ph.filePath)
	if err != nil {
		return fmt.Errorf("could not create probe history file: %w", err)
	}
	defer file.Close()

	var saveErr error
	switch ph.format {
	case "json":
		saveErr = ph.saveJSON(file)
	case "txt", "":
		saveErr = ph.saveTXT(file)
	default:
		saveErr = fmt.Errorf("unsupported format: %s", ph.format)
	}

	if saveErr == nil {
		ph.existUnsaved = false
	}

	return saveErr
}

// loadJSON reads probe history from JSON format
func (ph *ProbeHistory) loadJSON(file *os.File) error {
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&ph.entries); err != nil {
		return fmt.Errorf("could not decode JSON: %w", err)
	}
	return nil
}

// saveJSON writes probe history to JSON format
func (ph *ProbeHistory) saveJSON(file *os.File) error {
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ph.entries); err != nil {
		return fmt.Errorf("could not encode JSON: %w", err)
	}
	return nil
}

// loadTXT reads probe history from text format
// Format: target|ip|firstprobe|lastprobe|probecount
func (ph *ProbeHistory) loadTXT(file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue // Skip empty lines and comments
		}

		parts := strings.Split(line, "|")
		if len(parts) != 5 {
			gologger.Debug().Msgf("Skipping invalid line %d in probe history: %s\n", lineNum, line)
			continue
		}

		firstProbe, err := time.Parse(time.RFC3339, parts[2])
		if err != nil {
			gologger.Debug().Msgf("Invalid first probe time on line %d: %s\n", lineNum, err)
			continue
		}

		lastProbe, err := time.Parse(time.RFC3339, parts[3])
		if err != nil {
			gologger.Debug().Msgf("Invalid last probe time on line %d: %s\n", lineNum, err)
			continue
		}

		var probeCount int
		if _, err := fmt.Sscanf(parts[4], "%d", &probeCount); err != nil {
			gologger.Debug().Msgf("Invalid probe count on line %d: %s\n", lineNum, err)
			continue
		}

		ph.entries[parts[0]] = &HistoryEntry{
			Target:     parts[0],
			IP:         parts[1],
			FirstProbe: firstProbe,
			LastProbe:  lastProbe,
			ProbeCount: probeCount,
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading probe history: %w", err)
	}

	return nil
}

// saveTXT writes probe history to text format
// Format: target|ip|firstprobe|lastprobe|probecount
func (ph *ProbeHistory) saveTXT(file *os.File) error {
	writer := bufio.NewWriter(file)
	defer writer.Flush()

	// Write header comment
	if _, err := fmt.Fprintf(writer, "# ikex probe history\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "# Format: target|ip|firstprobe|lastprobe|probecount\n"); err != nil {
		return err
	}

	for _, entry := range ph.entries {
		line := fmt.Sprintf("%s|%s|%s|%s|%d\n",
			entry.Target,
			entry.IP,
			entry.FirstProbe.Format(time.RFC3339),
			entry.LastProbe.Format(time.RFC3339),
			entry.ProbeCount,
		)
		if _, err := writer.WriteString(line); err != nil {
			return fmt.Errorf("could not write entry: %w", err)
		}
	}

	return nil
}
