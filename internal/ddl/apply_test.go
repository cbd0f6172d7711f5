package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

func TestApply_CreateDatabase(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	updated, removed, err := Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1"}, "")
	require.NoError(t, err)
	assert.Len(t, updated, 1)
	assert.Empty(t, removed)

	_, ok := reg.Get(catalog.NewKey(catalog.KindDatabase, "d1"))
	assert.True(t, ok)
}

func TestApply_CreateDatabase_IfNotExistSwallowsConflict(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1"}, "")
	require.NoError(t, err)

	updated, removed, err := Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1", IfNotExist: true}, "")
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Empty(t, removed)
}

func TestApply_CreateDatabase_ConflictWithoutIfNotExistErrors(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1"}, "")
	require.NoError(t, err)

	_, _, err = Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1"}, "")
	assert.Error(t, err)
}

func TestApply_DropDatabase_CascadesAndReturnsRemoved(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeCreateDatabase, Database: "d1"}, "")
	require.NoError(t, err)
	_, _, err = Apply(reg, Statement{Type: TypeCreateTable, Database: "d1", Name: "t1"}, "")
	require.NoError(t, err)

	updated, removed, err := Apply(reg, Statement{Type: TypeDropDatabase, Database: "d1"}, "")
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Len(t, removed, 2)
}

func TestApply_DropDatabase_IfExistsSwallowsNotFound(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeDropDatabase, Database: "missing", IfExists: true}, "")
	require.NoError(t, err)
}

func TestApply_CreateTable_UsesDefaultDB(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	updated, _, err := Apply(reg, Statement{Type: TypeCreateTable, Name: "t1", Columns: []string{"a"}}, "d1")
	require.NoError(t, err)
	require.Len(t, updated, 1)

	e, ok := reg.Get(catalog.NewKey(catalog.KindTable, "d1.t1"))
	require.True(t, ok)
	assert.True(t, e.Loaded, "DDL-created tables are loaded immediately")
}

func TestApply_DropTable_NotFoundWithoutIfExists(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeDropTable, Database: "d1", Name: "missing"}, "")
	assert.Error(t, err)
}

func TestApply_RenameTable_ReturnsBothUpdatedAndRemoved(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: TypeCreateTable, Database: "d1", Name: "old"}, "")
	require.NoError(t, err)

	updated, removed, err := Apply(reg, Statement{Type: TypeRenameTable, Database: "d1", Name: "old", NewName: "new"}, "")
	require.NoError(t, err)
	require.Len(t, updated, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, catalog.NewKey(catalog.KindTable, "d1.new"), updated[0].Key)
	assert.Equal(t, catalog.NewKey(catalog.KindTable, "d1.old"), removed[0].Key)
	assert.Less(t, removed[0].Version, updated[0].Version,
		"the removed record must carry the old key's own tombstone version, not the new key's version")
}

func TestApply_CreateView(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	updated, _, err := Apply(reg, Statement{Type: TypeCreateView, Database: "d1", Name: "v1", ViewSQL: "SELECT 1"}, "")
	require.NoError(t, err)
	require.Len(t, updated, 1)

	e, ok := reg.Get(catalog.NewKey(catalog.KindView, "d1.v1"))
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", e.Payload.(catalog.TablePayload).ViewSQL)
}

func TestApply_CreateAndDropFunction(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	updated, _, err := Apply(reg, Statement{Type: TypeCreateFunction, Database: "d1", Name: "fn1", Sig: "fn1(int) -> int"}, "")
	require.NoError(t, err)
	require.Len(t, updated, 1)

	_, removed, err := Apply(reg, Statement{Type: TypeDropFunction, Database: "d1", Name: "fn1"}, "")
	require.NoError(t, err)
	require.Len(t, removed, 1)
}

func TestApply_UnsupportedStatementType(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, _, err := Apply(reg, Statement{Type: "BOGUS"}, "")
	assert.Error(t, err)
}
