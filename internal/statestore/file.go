package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jsribeiro/ddnsd/internal/contracts"
	"github.com/jsribeiro/ddnsd/internal/ddnserr"
	"github.com/jsribeiro/ddnsd/internal/domain"
	"github.com/jsribeiro/ddnsd/internal/logging"
)

// CurrentVersion is the only version this implementation writes. Loading
// an unknown (but present) version string still succeeds, with a WARN.
const CurrentVersion = "1.0"

const filePerm = 0o640

// diskRecord is the JSON-wire shape of a StateRecord: IP addresses and
// timestamps are strings, per SPEC_FULL.md §6.
type diskRecord struct {
	LastIP           string            `json:"last_ip"`
	LastUpdated      time.Time         `json:"last_updated"`
	ProviderMetadata map[string]string `json:"provider_metadata,omitempty"`
}

type diskDocument struct {
	Version string                `json:"version"`
	Records map[string]diskRecord `json:"records"`
}

// File is a StateStore backed by a JSON document on disk, written with
// the atomic temp-file-then-rename protocol, with a ".backup" copy of the
// previous good state kept for crash recovery.
type File struct {
	mu     sync.Mutex
	path   string
	log    logging.Logger
	state  map[domain.Name]contracts.StateRecord
}

// OpenFile implements the load protocol from SPEC_FULL.md §4.4: missing
// main file starts empty; a parseable main file loads directly; a corrupt
// main file falls back to .backup, restoring main from it on success;
// both corrupt is a fatal KindConfig error.
func OpenFile(path string, log logging.Logger) (*File, error) {
	if log == nil {
		log = logging.Nop()
	}
	f := &File{path: path, log: log, state: make(map[domain.Name]contracts.StateRecord)}

	mainDoc, mainErr := readDocument(path)
	if mainErr == nil {
		records, err := fromDisk(mainDoc)
		if err != nil {
			mainErr = err
		} else {
			if mainDoc.Version != CurrentVersion {
				log.Warnw("state file has unknown version, loading anyway", "path", path, "version", mainDoc.Version)
			}
			f.state = records
			return f, nil
		}
	}

	if os.IsNotExist(mainErr) {
		return f, nil
	}

	backupPath := path + ".backup"
	backupDoc, backupErr := readDocument(backupPath)
	if backupErr != nil {
		return nil, ddnserr.Wrap(ddnserr.KindConfig,
			fmt.Sprintf("state file %s and backup %s are both unreadable", path, backupPath), mainErr)
	}
	records, err := fromDisk(backupDoc)
	if err != nil {
		return nil, ddnserr.Wrap(ddnserr.KindConfig,
			fmt.Sprintf("state file %s is corrupt and backup %s failed to parse", path, backupPath), err)
	}

	log.Warnw("main state file unreadable, recovered from backup", "path", path, "backup", backupPath, "error", mainErr)
	if err := copyFile(backupPath, path); err != nil {
		log.Errorw("failed to restore main state file from backup", "error", err)
	}

	f.state = records
	return f, nil
}

func readDocument(path string) (diskDocument, error) {
	var doc diskDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	if doc.Version == "" {
		return doc, fmt.Errorf("state document is missing required \"version\" field")
	}
	return doc, nil
}

func fromDisk(doc diskDocument) (map[domain.Name]contracts.StateRecord, error) {
	out := make(map[domain.Name]contracts.StateRecord, len(doc.Records))
	for name, rec := range doc.Records {
		n, err := domain.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("state document contains invalid record name %q: %w", name, err)
		}
		ip, err := netip.ParseAddr(rec.LastIP)
		if err != nil {
			return nil, fmt.Errorf("state document record %q has invalid last_ip %q: %w", name, rec.LastIP, err)
		}
		out[n] = contracts.StateRecord{
			LastIP:           ip,
			LastUpdated:      rec.LastUpdated,
			ProviderMetadata: rec.ProviderMetadata,
		}
	}
	return out, nil
}

func toDisk(state map[domain.Name]contracts.StateRecord) diskDocument {
	records := make(map[string]diskRecord, len(state))
	for name, rec := range state {
		records[string(name)] = diskRecord{
			LastIP:           rec.LastIP.String(),
			LastUpdated:      rec.LastUpdated,
			ProviderMetadata: rec.ProviderMetadata,
		}
	}
	return diskDocument{Version: CurrentVersion, Records: records}
}

func (f *File) GetLastIP(_ context.Context, name domain.Name) (netip.Addr, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.state[name]
	if !ok {
		return netip.Addr{}, false, nil
	}
	return rec.LastIP, true, nil
}

func (f *File) GetRecord(_ context.Context, name domain.Name) (contracts.StateRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.state[name]
	return rec, ok, nil
}

func (f *File) SetLastIP(ctx context.Context, name domain.Name, ip netip.Addr) error {
	f.mu.Lock()
	prev := f.state[name]
	next := contracts.StateRecord{
		LastIP:           ip,
		LastUpdated:      time.Now().UTC(),
		ProviderMetadata: prev.ProviderMetadata,
	}
	f.mu.Unlock()
	return f.SetRecord(ctx, name, next)
}

func (f *File) SetRecord(_ context.Context, name domain.Name, record contracts.StateRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.cloneLocked()
	snapshot[name] = record
	if err := f.persistLocked(snapshot); err != nil {
		return err
	}
	f.state = snapshot
	return nil
}

func (f *File) DeleteRecord(_ context.Context, name domain.Name) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.cloneLocked()
	delete(snapshot, name)
	if err := f.persistLocked(snapshot); err != nil {
		return err
	}
	f.state = snapshot
	return nil
}

func (f *File) ListRecords(_ context.Context) ([]domain.Name, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]domain.Name, 0, len(f.state))
	for n := range f.state {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// Flush is a no-op: every SetRecord/DeleteRecord call already persists
// synchronously. It exists to satisfy the contract and to give a future
// buffering implementation somewhere to hook in.
func (f *File) Flush(_ context.Context) error { return nil }

func (f *File) cloneLocked() map[domain.Name]contracts.StateRecord {
	clone := make(map[domain.Name]contracts.StateRecord, len(f.state))
	for k, v := range f.state {
		clone[k] = v
	}
	return clone
}

// persistLocked implements the atomic write protocol from
// SPEC_FULL.md §4.4: serialize, write to a sibling temp file, fsync,
// back up the current main file, then atomically rename the temp file
// over it. Callers hold f.mu.
func (f *File) persistLocked(snapshot map[domain.Name]contracts.StateRecord) error {
	doc := toDisk(snapshot)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ddnserr.Wrap(ddnserr.KindState, "marshal state document", err)
	}

	dir := filepath.Dir(f.path)
	tmpPath := f.path + ".tmp"

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return ddnserr.Wrap(ddnserr.KindState, "open temp state file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ddnserr.Wrap(ddnserr.KindState, "write temp state file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ddnserr.Wrap(ddnserr.KindState, "fsync temp state file", err)
	}
	if err := tmp.Close(); err != nil {
		return ddnserr.Wrap(ddnserr.KindState, "close temp state file", err)
	}

	if _, err := os.Stat(f.path); err == nil {
		if err := copyFile(f.path, f.path+".backup"); err != nil {
			f.log.Errorw("failed to update state backup file", "error", err)
		}
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return ddnserr.Wrap(ddnserr.KindState, "rename temp state file over main", err)
	}

	if dirF, err := os.Open(dir); err == nil {
		_ = dirF.Sync()
		_ = dirF.Close()
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, filePerm)
}
