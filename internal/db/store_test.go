package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
)

// StoreSuite is a test suite for the token and selection stores backed by a
// temporary SQLite database.
type StoreSuite struct {
	suite.Suite
	store      *Store
	tokens     *TokenStore
	selections *SelectionStore
	ctx        context.Context
}

func (s *StoreSuite) SetupTest() {
	store, err := Open(sqlite.Open(s.T().TempDir()+"/wapi-test.db"), Config{})
	s.Require().NoError(err)
	s.store = store
	s.tokens = NewTokenStore(store)
	s.selections = NewSelectionStore(store)
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// TestTokenReplace tests that regeneration leaves exactly one current row.
func (s *StoreSuite) TestTokenReplace() {
	_, err := s.tokens.Replace(s.ctx, "user-a", "tok-1")
	s.Require().NoError(err)
	_, err = s.tokens.Replace(s.ctx, "user-a", "tok-2")
	s.Require().NoError(err)

	current, err := s.tokens.Current(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Equal("tok-2", current.Token)

	var count int64
	s.Require().NoError(s.store.DB.Model(&APIToken{}).Where("user_id = ?", "user-a").Count(&count).Error)
	s.EqualValues(1, count)
}

// TestTokenReplace_Isolated tests that regenerating for account A never
// touches account B's token.
func (s *StoreSuite) TestTokenReplace_Isolated() {
	_, err := s.tokens.Replace(s.ctx, "user-a", "tok-a")
	s.Require().NoError(err)
	_, err = s.tokens.Replace(s.ctx, "user-b", "tok-b")
	s.Require().NoError(err)

	_, err = s.tokens.Replace(s.ctx, "user-a", "tok-a2")
	s.Require().NoError(err)

	b, err := s.tokens.Current(s.ctx, "user-b")
	s.Require().NoError(err)
	s.Equal("tok-b", b.Token)
}

// TestTokenCurrent_None tests the sentinel for accounts without a token.
func (s *StoreSuite) TestTokenCurrent_None() {
	_, err := s.tokens.Current(s.ctx, "user-x")
	s.Require().ErrorIs(err, ErrNoToken)
}

// TestTokenDeleteForUser tests idempotent deletion.
func (s *StoreSuite) TestTokenDeleteForUser() {
	_, err := s.tokens.Replace(s.ctx, "user-a", "tok-1")
	s.Require().NoError(err)

	s.Require().NoError(s.tokens.DeleteForUser(s.ctx, "user-a"))
	_, err = s.tokens.Current(s.ctx, "user-a")
	s.Require().ErrorIs(err, ErrNoToken)

	// Deleting again with zero rows is not an error.
	s.Require().NoError(s.tokens.DeleteForUser(s.ctx, "user-a"))
}

// TestSelectionRoundTrip tests upsert, read, and clear of the selection.
func (s *StoreSuite) TestSelectionRoundTrip() {
	name, err := s.selections.Get(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Empty(name)

	s.Require().NoError(s.selections.Save(s.ctx, "user-a", "default"))
	s.Require().NoError(s.selections.Save(s.ctx, "user-a", "second"))

	name, err = s.selections.Get(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Equal("second", name)

	s.Require().NoError(s.selections.Clear(s.ctx, "user-a"))
	name, err = s.selections.Get(s.ctx, "user-a")
	s.Require().NoError(err)
	s.Empty(name)

	// Clearing when nothing is stored is not an error.
	s.Require().NoError(s.selections.Clear(s.ctx, "user-a"))
}
