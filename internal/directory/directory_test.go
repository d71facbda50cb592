package directory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"qdbreport/pkg/contracts/domain"
)

func loadTestSeed(t *testing.T) *Seed {
	t.Helper()
	seed, err := LoadSeedFile(filepath.Join("testdata", "seed.yaml"))
	require.NoError(t, err)
	return seed
}

func TestParseSeed(t *testing.T) {
	seed := loadTestSeed(t)

	assert.Len(t, seed.Units, 4)
	assert.Len(t, seed.Staff, 5)
	assert.Len(t, seed.Recipients, 6)
	assert.Len(t, seed.Accounts, 5)
	assert.Equal(t, domain.RoleHead, seed.Recipients[0].Role)
}

func TestParseSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown field", yaml: "unitz: []"},
		{name: "bad role", yaml: `
units: [{id: 1, name: A}]
staff: [{id: 1, name: B, email: b@example.com}]
recipients: [{unit_id: 1, staff_id: 1, role: boss}]`},
		{name: "dangling staff", yaml: `
units: [{id: 1, name: A}]
recipients: [{unit_id: 1, staff_id: 7, role: head}]`},
		{name: "dangling unit on account", yaml: `
accounts: [{unit_id: 4, account: "436000", cost_center: AD}]`},
		{name: "duplicate unit", yaml: `
units: [{id: 1, name: A}, {id: 1, name: B}]`},
		{name: "bad email", yaml: `
staff: [{id: 1, name: B, email: not-an-address}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

type seededStore interface {
	Store
	Loader
}

// storeSuite runs the same contract against every Store implementation.
type storeSuite struct {
	suite.Suite
	open  func(t *testing.T) seededStore
	store seededStore
	ctx   context.Context
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
	s.Require().NoError(s.store.Load(s.ctx, loadTestSeed(s.T())))
}

func (s *storeSuite) TestUnitsOrderedByName() {
	units, err := s.store.Units(s.ctx)
	s.Require().NoError(err)

	var names []string
	for _, u := range units {
		names = append(names, u.Name)
	}
	s.Equal([]string{"All units", "Communication", "DIIT Software Development", "LBS"}, names)
}

func (s *storeSuite) TestAccountBindings() {
	bindings, err := s.store.AccountBindings(s.ctx, 21)
	s.Require().NoError(err)
	s.Require().Len(bindings, 4)
	s.Equal(domain.AccountBinding{UnitID: 21, Account: "436000", CostCenter: "AD", Title: "LIBRARY:DIIT"}, bindings[0])
	s.Equal("LM", bindings[1].CostCenter)
	s.Equal("", bindings[3].CostCenter)

	none, err := s.store.AccountBindings(s.ctx, 3)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *storeSuite) TestRecipientBindings() {
	bindings, err := s.store.RecipientBindings(s.ctx, 21)
	s.Require().NoError(err)
	s.Equal([]domain.RecipientBinding{
		{UnitID: 21, Role: domain.RoleAUL, StaffName: "Todd Grappone", Email: "grappone@library.ucla.edu"},
		{UnitID: 21, Role: domain.RoleHead, StaffName: "Joshua Gomez", Email: "joshuagomez@library.ucla.edu"},
	}, bindings)
}

func (s *storeSuite) TestLoadReplacesEverything() {
	seed := &Seed{Units: []domain.Unit{{ID: 5, Name: "Arts"}}}
	s.Require().NoError(s.store.Load(s.ctx, seed))

	units, err := s.store.Units(s.ctx)
	s.Require().NoError(err)
	s.Equal([]domain.Unit{{ID: 5, Name: "Arts"}}, units)

	bindings, err := s.store.RecipientBindings(s.ctx, 21)
	s.Require().NoError(err)
	s.Empty(bindings)
}

func (s *storeSuite) TestLoadRejectsInvalidSeed() {
	bad := &Seed{Accounts: []SeedAccount{{UnitID: 42, Account: "1"}}}
	s.Error(s.store.Load(s.ctx, bad))

	units, err := s.store.Units(s.ctx)
	s.Require().NoError(err)
	s.Len(units, 4, "invalid seed must not clear the store")
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(*testing.T) seededStore {
		return NewMemory(nil)
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storeSuite{open: func(t *testing.T) seededStore {
		db, err := OpenSQLite(MemoryPath, nil)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}})
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "qdb.sqlite3")
	ctx := context.Background()

	db, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, db.Load(ctx, loadTestSeed(t)))
	require.NoError(t, db.Close())

	// reopening runs migrations again without error and keeps the data
	db, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer db.Close()

	units, err := db.Units(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 4)
}
