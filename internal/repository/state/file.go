package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tankwatch/tank-guard/internal/config"
	"github.com/tankwatch/tank-guard/internal/domain/door"
)

// Repository defines persistence operations for the arm and suspension flags.
type Repository interface {
	Load(ctx context.Context) (door.Flags, error)
	Save(ctx context.Context, flags door.Flags) error
}

// FileRepository persists the flags to a JSON file on disk.
// The record is written to a temporary file, synced and renamed over the
// target so a reader sees either the old or the new record, never a mix.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// now stamps saved records.
	now func() time.Time
	// mu serialises writers of the state file.
	mu sync.Mutex
}

const (
	keyArmed1    = "armed1"
	keyArmed2    = "armed2"
	keySuspended = "autoArmSuspended"
	keySavedAt   = "savedAt"
)

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// errMalformed is returned when a record misses a flag or has the wrong type.
	errMalformed = errors.New("malformed state record")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		now:  time.Now,
	}
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the flags from disk.
func (r *FileRepository) Load(_ context.Context) (door.Flags, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return door.Flags{}, ErrNotFound
		}

		return door.Flags{}, fmt.Errorf("read state file: %w", err)
	}

	var record structpb.Struct
	if err = protojson.Unmarshal(contents, &record); err != nil {
		return door.Flags{}, fmt.Errorf("decode state file: %w", err)
	}

	return fromRecord(&record)
}

// Save writes the flags to disk and forces them to stable storage.
func (r *FileRepository) Save(_ context.Context, flags door.Flags) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := toRecord(flags, r.now())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	data, err := protojson.MarshalOptions{Multiline: true, EmitUnpopulated: true}.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return err
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return err
	}

	if err = os.Rename(tmpName, path); err != nil {
		return err
	}

	syncDir(dir)

	return nil
}

// syncDir makes the rename durable. Not every platform or filesystem
// supports syncing a directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir) //nolint:gosec // Directory of the configured state file.
	if err != nil {
		return
	}

	_ = d.Sync()
	_ = d.Close()
}

func toRecord(flags door.Flags, savedAt time.Time) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		keyArmed1:    flags.Armed[0],
		keyArmed2:    flags.Armed[1],
		keySuspended: flags.AutoArmSuspended,
		keySavedAt:   savedAt.UTC().Format(time.RFC3339),
	})
}

func fromRecord(record *structpb.Struct) (door.Flags, error) {
	var flags door.Flags

	read := func(key string) (bool, error) {
		v, ok := record.GetFields()[key]
		if !ok {
			return false, fmt.Errorf("%w: missing %q", errMalformed, key)
		}

		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return false, fmt.Errorf("%w: %q is not a bool", errMalformed, key)
		}

		return b.BoolValue, nil
	}

	var err error

	if flags.Armed[0], err = read(keyArmed1); err != nil {
		return door.Flags{}, err
	}

	if flags.Armed[1], err = read(keyArmed2); err != nil {
		return door.Flags{}, err
	}

	if flags.AutoArmSuspended, err = read(keySuspended); err != nil {
		return door.Flags{}, err
	}

	// Records without a usable timestamp still load.
	if savedAt, parseErr := time.Parse(time.RFC3339, record.GetFields()[keySavedAt].GetStringValue()); parseErr == nil {
		flags.SavedAt = savedAt
	}

	return flags, nil
}
