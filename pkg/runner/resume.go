package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/projectdiscovery/gologger"
	fileutil "github.com/projectdiscovery/utils/file"
)

// Default resume file
const defaultResumeFileName = "resume.cfg"

func DefaultResumeFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultResumeFileName
	}
	return filepath.Join(home, ".config", "ikex", defaultResumeFileName)
}

// ResumeCfg contains the run progression
type ResumeCfg struct {
	sync.RWMutex
	Retry int   `json:"retry"`
	Seed  int64 `json:"seed"`
	Index int64 `json:"index"`
}

// NewResumeCfg creates a new run progression structure
func NewResumeCfg() *ResumeCfg {
	return &ResumeCfg{}
}

// SaveResumeConfig to file
func (resumeCfg *ResumeCfg) SaveResumeConfig() error {
	resumeCfg.RLock()
	data, _ := json.MarshalIndent(resumeCfg, "", "\t")
	resumeCfg.RUnlock()

	resumeFilePath := DefaultResumeFilePath()
	resumeFolder := filepath.Dir(resumeFilePath)
	if !fileutil.FolderExists(resumeFolder) {
		if err := os.MkdirAll(resumeFolder, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(resumeFilePath, data, os.ModePerm)
}

// ConfigureResume read the resume config file
func (resumeCfg *ResumeCfg) ConfigureResume() error {
	gologger.Info().Msg("Resuming from save checkpoint")
	file, err := os.ReadFile(DefaultResumeFilePath())
	if err != nil {
		return err
	}
	err = json.Unmarshal(file, &resumeCfg)
	if err != nil {
		return err
	}
	return nil
}

// ShouldSaveResume file
func (resumeCfg *ResumeCfg) ShouldSaveResume() bool {
	return true
}

// CleanupResumeConfig cleaning up the config file
func (resumeCfg *ResumeCfg) CleanupResumeConfig() {
	if fileutil.FileExists(DefaultResumeFilePath()) {
		os.Remove(DefaultResumeFilePath())
	}
}
