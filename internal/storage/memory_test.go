package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

func TestMemoryStore_MissingSessionIsNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetSession("919876543210")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_SaveThenGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	session := models.NewSession("919876543210")
	session.State = models.StateLeadEmail
	session.FlowData["name"] = "Ravi Kumar"
	require.NoError(t, store.SaveSession(session))

	loaded, err := store.GetSession("919876543210")
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, models.StateLeadEmail, loaded.State)
	assert.Equal(t, "Ravi Kumar", loaded.FlowData["name"])
}

func TestMemoryStore_SaveOverwritesByPhoneNumber(t *testing.T) {
	store := NewMemoryStore()

	session := models.NewSession("919876543210")
	require.NoError(t, store.SaveSession(session))

	session.State = models.StateMainMenu
	require.NoError(t, store.SaveSession(session))

	loaded, err := store.GetSession("919876543210")
	require.NoError(t, err)
	assert.Equal(t, models.StateMainMenu, loaded.State)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ReturnedSessionIsDetached(t *testing.T) {
	store := NewMemoryStore()

	session := models.NewSession("919876543210")
	session.FlowData["product"] = "Cement"
	require.NoError(t, store.SaveSession(session))

	// Mutating a loaded copy must not leak into the stored state
	loaded, err := store.GetSession("919876543210")
	require.NoError(t, err)
	loaded.FlowData["product"] = "Steel"
	loaded.State = models.StateDoConfirm

	fresh, err := store.GetSession("919876543210")
	require.NoError(t, err)
	assert.Equal(t, "Cement", fresh.FlowData["product"])
	assert.Equal(t, models.StateInitial, fresh.State)

	// And neither must later mutation of the saved original
	session.FlowData["product"] = "Gravel"
	fresh, err = store.GetSession("919876543210")
	require.NoError(t, err)
	assert.Equal(t, "Cement", fresh.FlowData["product"])
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	phones := []string{"911111111111", "912222222222", "913333333333"}
	for _, phone := range phones {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(phone string) {
				defer wg.Done()
				_ = store.SaveSession(models.NewSession(phone))
				_, _ = store.GetSession(phone)
			}(phone)
		}
	}
	wg.Wait()

	assert.Equal(t, len(phones), store.Len())
}
