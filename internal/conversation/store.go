package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/calderonlabs/tienda-backend/internal/cart"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	pkgerrors "github.com/calderonlabs/tienda-backend/pkg/errors"
	"github.com/calderonlabs/tienda-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartCreator interface {
	Create(ctx context.Context, phone string, lines []cart.LineInput) (*models.Cart, error)
}

// Store is the conversation history layer used by the agent. Each phone
// number maps to one conversation row whose turn log is rewritten as a whole
// on append; first contact also provisions the customer's cart.
type Store struct {
	repo  *Repository
	tx    txRunner
	carts cartCreator
	limit int
}

func NewStore(repo *Repository, tx txRunner, carts cartCreator, historyLimit int) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("conversation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if historyLimit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", historyLimit)
	}
	return &Store{repo: repo, tx: tx, carts: carts, limit: historyLimit}, nil
}

// GetOrCreate returns the conversation bound to the phone number, creating it
// together with an empty cart on first contact. A cart that already exists is
// left alone.
func (s *Store) GetOrCreate(ctx context.Context, phone string) (*models.Conversation, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone number is required")
	}

	conv, err := s.repo.FindByPhone(ctx, phone)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}

	conv = &models.Conversation{PhoneNumber: phone}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conversation")
	}

	if s.carts != nil {
		if _, err := s.carts.Create(ctx, phone, nil); err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, err
		}
	}
	return conv, nil
}

// History returns the model-facing window for the phone number. An unknown
// phone number or an undecodable turn document both read as empty history.
func (s *Store) History(ctx context.Context, phone string) ([]types.Turn, error) {
	conv, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	return LoadWindow(conv.Turns, s.limit), nil
}

// Append adds the turns produced by one agent exchange to the stored log.
// The document is read and rewritten inside one transaction; a document that
// no longer decodes is restarted from the delta alone.
func (s *Store) Append(ctx context.Context, phone string, delta []types.Turn) error {
	if len(delta) == 0 {
		return nil
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		conv, err := repo.FindByPhone(ctx, phone)
		if err != nil {
			return err
		}

		var turns []types.Turn
		if len(conv.Turns) > 0 {
			// Corrupt documents decode to nil and are replaced wholesale.
			_ = json.Unmarshal(conv.Turns, &turns)
		}
		turns = append(turns, delta...)

		doc, err := json.Marshal(turns)
		if err != nil {
			return err
		}
		conv.Turns = doc
		return repo.Save(ctx, conv)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no conversation for phone number %s", phone))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append conversation turns")
	}
	return nil
}

// Clear resets the turn log while keeping the conversation row.
func (s *Store) Clear(ctx context.Context, phone string) error {
	conv, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no conversation for phone number %s", phone))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	conv.Turns = []byte("[]")
	if err := s.repo.Save(ctx, conv); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear conversation")
	}
	return nil
}
