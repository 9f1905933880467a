// Package bridgeauth keeps the chat-bridge credentials: the agent name in
// the clear and the bridge token encrypted at rest in the config table.
package bridgeauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	dbmodel "paneherd/cli/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	cfgKeyAgentName = "bridge_agent_name"
	cfgKeyTokenEnc  = "bridge_token_enc"
	secretKeySize   = 32
)

// Credentials is what the bridge registration needs to authenticate.
type Credentials struct {
	AgentName string
	Token     string
	TokenSet  bool
}

type Store struct {
	db  *gorm.DB
	key []byte
}

// NewStore uses the shared global DB. Caller must not close the db. The
// secret key file is created on first use with 0600 permissions.
func NewStore(db *gorm.DB, secretPath string) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	key, err := loadOrCreateSecretKey(secretPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, key: key}, nil
}

func (s *Store) Save(creds Credentials) error {
	if s == nil || s.db == nil {
		return errors.New("bridge auth store is not initialized")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertValue(tx, cfgKeyAgentName, strings.TrimSpace(creds.AgentName)); err != nil {
			return err
		}
		if strings.TrimSpace(creds.Token) == "" {
			return nil
		}
		enc, err := encrypt(creds.Token, s.key)
		if err != nil {
			return err
		}
		return upsertValue(tx, cfgKeyTokenEnc, enc)
	})
}

func (s *Store) Load() (Credentials, error) {
	if s == nil || s.db == nil {
		return Credentials{}, errors.New("bridge auth store is not initialized")
	}
	name, _ := s.rawValueOptional(cfgKeyAgentName)
	encToken, _ := s.rawValueOptional(cfgKeyTokenEnc)

	out := Credentials{AgentName: strings.TrimSpace(name)}
	if strings.TrimSpace(encToken) == "" {
		return out, nil
	}
	plain, err := decrypt(encToken, s.key)
	if err != nil {
		return Credentials{}, err
	}
	out.Token = plain
	out.TokenSet = true
	return out, nil
}

func (s *Store) rawValueOptional(key string) (string, bool) {
	var row dbmodel.Config
	err := s.db.Model(&dbmodel.Config{}).Select("value").Where("key = ?", key).Take(&row).Error
	if err != nil {
		return "", false
	}
	return row.Value, true
}

func upsertValue(tx *gorm.DB, key, value string) error {
	row := dbmodel.Config{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Unix(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func loadOrCreateSecretKey(secretPath string) ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(secretPath), 0o755); err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(secretPath); err == nil {
		if len(b) != secretKeySize {
			return nil, fmt.Errorf("invalid bridge secret size: got %d", len(b))
		}
		return b, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key := make([]byte, secretKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(secretPath, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func encrypt(plain string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(plain), nil)
	combined := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

func decrypt(enc string, key []byte) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
