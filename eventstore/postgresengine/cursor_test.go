package postgresengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CursorStore_SaveStatement_GuardsAgainstMovingTheCursorBackwards(t *testing.T) {
	// arrange
	cursorStore := CursorStore{cursorsTableName: defaultCursorsTableName}

	// act
	sqlQuery, err := cursorStore.buildSaveQuery("test-group", 7)

	// assert: the conflict update only fires when the persisted position is lower,
	// so a stale writer cannot regress the cursor and trigger mass redelivery
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, "ON CONFLICT")
	assert.Contains(t, sqlQuery, "DO UPDATE")
	assert.Contains(t, sqlQuery, `WHERE ("position" < 7)`)
}
