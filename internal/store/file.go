package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// optionPath is the option key naming the flat-file log location.
const optionPath = "path"

// Log operations recorded by the flat-file store.
const (
	fileOpUserAdd    = "user-add"
	fileOpUserRemove = "user-remove"
	fileOpAssign     = "assign"
	fileOpUnassign   = "unassign"
	fileOpAdmin      = "admin"
)

// fileRecord is one line of the append-only log.
type fileRecord struct {
	Op       string `json:"op"`
	Login    string `json:"login"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	Suffix   int64  `json:"suffix,omitempty"`
}

// fileUser is the in-memory image of one user.
type fileUser struct {
	user     plugin.User
	suffixes map[int64]struct{}
}

// FileUserRole is the flat-file user-role store: an append-only JSON-line
// log replayed into a map at connect time. The log write happens before
// the map update; if the durable write fails the in-memory state stays
// untouched and the mutation reports failure. Reads run concurrently
// under a read lock, writes serialize on the same lock.
type FileUserRole struct {
	plugin.Notifier

	options map[string]string

	mu    sync.RWMutex
	users map[string]*fileUser
	file  *os.File
}

// NewFileUserRole builds an unconfigured flat-file user-role store.
func NewFileUserRole() plugin.Plugin {
	return &FileUserRole{}
}

// Configure stores the options map.
func (s *FileUserRole) Configure(options map[string]string) {
	s.options = options
}

// Validate reports the path option when absent.
func (s *FileUserRole) Validate() []string {
	var missing []string
	if s.options[optionPath] == "" {
		missing = append(missing, optionPath)
	}

	return missing
}

// InitConnection opens the log file and replays it into memory.
func (s *FileUserRole) InitConnection() error {
	f, err := os.OpenFile(s.options[optionPath], os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to open user-role log")
	}

	users := make(map[string]*fileUser)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec fileRecord
		if err = json.Unmarshal(line, &rec); err != nil {
			_ = f.Close()
			return errors.Wrap(err, "corrupt user-role log line")
		}

		applyFileRecord(users, rec)
	}

	if err = scanner.Err(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to read user-role log")
	}

	s.mu.Lock()
	s.users = users
	s.file = f
	s.mu.Unlock()

	return nil
}

// Release closes the log file, idempotently.
func (s *FileUserRole) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}

	_ = s.file.Close()
	s.file = nil
}

func applyFileRecord(users map[string]*fileUser, rec fileRecord) {
	switch rec.Op {
	case fileOpUserAdd:
		users[rec.Login] = &fileUser{
			user: plugin.User{
				Login:    rec.Login,
				FullName: rec.FullName,
				Email:    rec.Email,
				Admin:    rec.Admin,
			},
			suffixes: make(map[int64]struct{}),
		}
	case fileOpUserRemove:
		delete(users, rec.Login)
	case fileOpAssign:
		if u, ok := users[rec.Login]; ok {
			u.suffixes[rec.Suffix] = struct{}{}
		}
	case fileOpUnassign:
		if u, ok := users[rec.Login]; ok {
			delete(u.suffixes, rec.Suffix)
		}
	case fileOpAdmin:
		if u, ok := users[rec.Login]; ok {
			u.user.Admin = rec.Admin
		}
	}
}

// append writes one record durably. The in-memory map is only touched by
// the caller after append succeeds.
func (s *FileUserRole) append(rec fileRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	line = append(line, '\n')

	if _, err = s.file.Write(line); err != nil {
		return errors.Wrap(err, "failed to append user-role log")
	}

	if err = s.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync user-role log")
	}

	return nil
}

// Add creates a user account.
func (s *FileUserRole) Add(_ context.Context, user plugin.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Login]; ok {
		return false, nil
	}

	rec := fileRecord{
		Op:       fileOpUserAdd,
		Login:    user.Login,
		FullName: user.FullName,
		Email:    user.Email,
		Admin:    user.Admin,
	}
	if err := s.append(rec); err != nil {
		return false, err
	}

	s.users[user.Login] = &fileUser{user: user, suffixes: make(map[int64]struct{})}

	s.Publish(plugin.UserAdded{Login: user.Login, Admin: user.Admin})

	return true, nil
}

// Remove deletes the user and, with it, every assignment it held.
func (s *FileUserRole) Remove(_ context.Context, login string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[login]; !ok {
		return false, nil
	}

	if err := s.append(fileRecord{Op: fileOpUserRemove, Login: login}); err != nil {
		return false, err
	}

	delete(s.users, login)

	s.Publish(plugin.UserRemoved{Login: login})

	return true, nil
}

// Assign grants the user the project role.
func (s *FileUserRole) Assign(_ context.Context, login string, suffix int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[login]
	if !ok {
		return false, nil
	}

	if _, dup := u.suffixes[suffix]; dup {
		return false, nil
	}

	if err := s.append(fileRecord{Op: fileOpAssign, Login: login, Suffix: suffix}); err != nil {
		return false, err
	}

	u.suffixes[suffix] = struct{}{}

	s.Publish(plugin.RoleAssigned{Login: login, Suffix: suffix})

	return true, nil
}

// Unassign revokes the user's project role.
func (s *FileUserRole) Unassign(_ context.Context, login string, suffix int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[login]
	if !ok {
		return false, nil
	}

	if _, held := u.suffixes[suffix]; !held {
		return false, nil
	}

	if err := s.append(fileRecord{Op: fileOpUnassign, Login: login, Suffix: suffix}); err != nil {
		return false, err
	}

	delete(u.suffixes, suffix)

	s.Publish(plugin.RoleUnassigned{Login: login, Suffix: suffix})

	return true, nil
}

// SetAdmin raises the user's global admin flag.
func (s *FileUserRole) SetAdmin(ctx context.Context, login string) (bool, error) {
	return s.setAdmin(ctx, login, true)
}

// UnsetAdmin lowers the user's global admin flag.
func (s *FileUserRole) UnsetAdmin(ctx context.Context, login string) (bool, error) {
	return s.setAdmin(ctx, login, false)
}

func (s *FileUserRole) setAdmin(_ context.Context, login string, admin bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[login]
	if !ok || u.user.Admin == admin {
		return false, nil
	}

	if err := s.append(fileRecord{Op: fileOpAdmin, Login: login, Admin: admin}); err != nil {
		return false, err
	}

	u.user.Admin = admin

	s.Publish(plugin.AdminChanged{Login: login, Admin: admin})

	return true, nil
}

// IsAdmin reports the user's global admin flag.
func (s *FileUserRole) IsAdmin(_ context.Context, login string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[login]

	return ok && u.user.Admin, nil
}

// Exists reports whether a user with the login is registered.
func (s *FileUserRole) Exists(_ context.Context, login string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[login]

	return ok, nil
}

// Users returns every registered user, ordered by login.
func (s *FileUserRole) Users(_ context.Context) ([]plugin.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plugin.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.user)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })

	return out, nil
}

// ListForProject returns every user assigned to the project.
func (s *FileUserRole) ListForProject(_ context.Context, suffix int64) ([]plugin.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []plugin.User

	for _, u := range s.users {
		if _, held := u.suffixes[suffix]; held {
			out = append(out, u.user)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })

	return out, nil
}
