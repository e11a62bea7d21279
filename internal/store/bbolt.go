package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/vault"
)

// Bucket names
var (
	UsersBucket = []byte("users")
	AuditBucket = []byte("audit")
)

// AccountsFile is the registry file name under the data root.
const AccountsFile = "accounts.db"

// AccountRegistry stores accounts and the audit log in a bbolt database.
type AccountRegistry struct {
	db     *bbolt.DB
	path   string
	params vault.Argon2Params
	log    *zap.Logger
	now    func() time.Time
}

// OpenAccountRegistry opens or creates the registry at path.
func OpenAccountRegistry(path string, params vault.Argon2Params, log *zap.Logger) (*AccountRegistry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := vault.ValidateArgon2Params(params); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := bbolt.Open(path, filePermission, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, ErrDataDirLocked
		}
		return nil, fmt.Errorf("failed to open account registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{UsersBucket, AuditBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := EnsureFilePermissions(path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to verify registry permissions: %w", err)
	}

	return &AccountRegistry{
		db:     db,
		path:   path,
		params: params,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database.
func (r *AccountRegistry) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Register creates an account with an Argon2id password hash.
func (r *AccountRegistry) Register(username, password, displayName string) (*domain.Account, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := vault.HashPassword(password, r.params)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = username
	}
	acct := &domain.Account{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    r.now(),
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(UsersBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}
		if bucket.Get([]byte(username)) != nil {
			return ErrAccountExists
		}
		return putAccount(bucket, acct)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("account registered", zap.String("username", username))
	return acct, nil
}

// Authenticate verifies the password and records the login time.
func (r *AccountRegistry) Authenticate(username, password string) (*domain.Account, error) {
	acct, err := r.Get(username)
	if err != nil {
		return nil, err
	}
	if err := vault.VerifyPassword(password, acct.PasswordHash); err != nil {
		return nil, err
	}

	acct.LastLogin = r.now()
	err = r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(UsersBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}
		return putAccount(bucket, acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Get returns the stored account.
func (r *AccountRegistry) Get(username string) (*domain.Account, error) {
	var acct domain.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(UsersBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}
		data := bucket.Get([]byte(username))
		if data == nil {
			return ErrAccountNotFound
		}
		if err := json.Unmarshal(data, &acct); err != nil {
			return fmt.Errorf("failed to decode account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Exists reports whether username is registered.
func (r *AccountRegistry) Exists(username string) bool {
	_, err := r.Get(username)
	return err == nil
}

// Usernames lists registered usernames, sorted.
func (r *AccountRegistry) Usernames() ([]string, error) {
	var names []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(UsersBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}
		return bucket.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}

// ChangePassword replaces the password hash after verifying the old one.
func (r *AccountRegistry) ChangePassword(username, oldPassword, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}
	acct, err := r.Get(username)
	if err != nil {
		return err
	}
	if err := vault.VerifyPassword(oldPassword, acct.PasswordHash); err != nil {
		return err
	}

	hash, err := vault.HashPassword(newPassword, r.params)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(UsersBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}
		return putAccount(bucket, acct)
	})
}

func putAccount(bucket *bbolt.Bucket, acct *domain.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	return bucket.Put([]byte(acct.Username), data)
}

type auditEnvelope struct {
	Operation *domain.Operation `json:"operation"`
}

// LogOperation appends op to the audit bucket.
func (r *AccountRegistry) LogOperation(op *domain.Operation) error {
	if op == nil {
		return fmt.Errorf("operation cannot be nil")
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = r.now()
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(AuditBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate audit sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		payload, err := json.Marshal(auditEnvelope{Operation: op})
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
		return bucket.Put(key, payload)
	})
}

// AuditLog returns the operations of username in chronological order. An
// empty username returns every operation.
func (r *AccountRegistry) AuditLog(username string) ([]*domain.Operation, error) {
	var ops []*domain.Operation
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(AuditBucket)
		if bucket == nil {
			return ErrRegistryCorrupted
		}

		return bucket.ForEach(func(k, v []byte) error {
			if v == nil {
				return nil
			}
			var env auditEnvelope
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("failed to decode audit entry: %w", err)
			}
			if env.Operation == nil {
				return fmt.Errorf("audit entry missing operation data")
			}
			if username != "" && env.Operation.Username != username {
				return nil
			}
			op := *env.Operation
			op.Timestamp = op.Timestamp.UTC()
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// VerifyIntegrity checks the buckets exist and every record decodes.
func (r *AccountRegistry) VerifyIntegrity() error {
	return r.db.View(func(tx *bbolt.Tx) error {
		users := tx.Bucket(UsersBucket)
		audit := tx.Bucket(AuditBucket)
		if users == nil || audit == nil {
			return ErrRegistryCorrupted
		}

		err := users.ForEach(func(k, v []byte) error {
			var acct domain.Account
			if err := json.Unmarshal(v, &acct); err != nil {
				return fmt.Errorf("corrupted account %q: %w", k, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		return audit.ForEach(func(k, v []byte) error {
			var env auditEnvelope
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("corrupted audit entry: %w", err)
			}
			if env.Operation == nil {
				return fmt.Errorf("audit entry missing operation data")
			}
			return nil
		})
	})
}
