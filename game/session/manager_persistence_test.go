package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

func TestManagerWithPersistence(t *testing.T) {
	persistence, configManager, _ := newTestPersistence(t)
	manager := NewManagerWithPersistence(persistence)

	t.Run("Create Session Auto-Saves", func(t *testing.T) {
		session, err := manager.Create("auto1", "alignment", configManager.GetDefault())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if !persistence.Exists(session.ID) {
			t.Error("Session should be auto-saved on creation")
		}

		loaded, err := persistence.Load(session.ID)
		if err != nil {
			t.Fatalf("Failed to load auto-saved session: %v", err)
		}
		if loaded.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loaded.ID)
		}
	})

	t.Run("Get Session Loads from Persistence", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence)

		session, err := manager2.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session from persistence: %v", err)
		}
		again, err := manager2.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session from memory: %v", err)
		}
		if again != session {
			t.Error("Session should be cached in memory after loading from persistence")
		}
	})

	t.Run("Save Method Persists Changes", func(t *testing.T) {
		session, err := manager.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}

		for _, cmd := range []engine.Command{
			{Type: engine.CmdSetParameter, Name: "angle", Value: 75},
			{Type: engine.CmdSetParameter, Name: "power", Value: 85},
		} {
			if _, err := session.Engine.Execute(cmd); err != nil {
				t.Fatalf("%s failed: %v", cmd, err)
			}
		}

		if err := manager.Save("auto1"); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		manager3 := NewManagerWithPersistence(persistence)
		loaded, err := manager3.Get("auto1")
		if err != nil {
			t.Fatalf("Failed to load session after manual save: %v", err)
		}
		if got := len(loaded.Engine.GetCommandHistory()); got != 2 {
			t.Errorf("Expected 2 history records, got %d", got)
		}
		if loaded.Engine.GetState().Alignment.Parameters[1].Value != 85 {
			t.Error("Parameter changes should be persisted")
		}
	})

	t.Run("Delete Removes from Persistence", func(t *testing.T) {
		session, err := manager.Create("delete_test", "alignment", configManager.GetDefault())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if err := manager.Delete(session.ID); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists(session.ID) {
			t.Error("Session should be removed from persistence on delete")
		}
		if _, err := manager.Get(session.ID); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete Persisted-Only Session", func(t *testing.T) {
		manager.Create("disk_only", "alignment", configManager.GetDefault())
		manager.DeleteFromMemory("disk_only")

		if err := manager.Delete("disk_only"); err != nil {
			t.Fatalf("Expected persisted session to be deletable, got %v", err)
		}
		if persistence.Exists("disk_only") {
			t.Error("Session file should be gone")
		}
	})

	t.Run("Load Persisted Sessions on Startup", func(t *testing.T) {
		ids := []string{"startup1", "startup2", "startup3"}
		for _, id := range ids {
			missionConfig, _ := configManager.LoadConfig("deployment")
			if _, err := manager.Create(id, "deployment", missionConfig); err != nil {
				t.Fatalf("Failed to create session %s: %v", id, err)
			}
		}

		manager4 := NewManagerWithPersistence(persistence)
		if err := manager4.LoadPersistedSessions(); err != nil {
			t.Fatalf("Failed to load persisted sessions: %v", err)
		}

		for _, id := range ids {
			session, err := manager4.Get(id)
			if err != nil {
				t.Fatalf("Failed to get session %s: %v", id, err)
			}
			if session.Engine.Kind() != engine.Deployment {
				t.Errorf("Expected deployment session, got %s", session.Engine.Kind())
			}
		}
		if manager4.Count() != countPersisted(t, persistence) {
			t.Errorf("Expected every persisted session in memory, got %d", manager4.Count())
		}
	})

	t.Run("Save All Persists Last Access", func(t *testing.T) {
		session, _ := manager.Get("startup1")
		originalTime := session.LastAccessedAt
		time.Sleep(10 * time.Millisecond)

		if err := manager.UpdateLastAccessed("startup1"); err != nil {
			t.Fatalf("Failed to update last accessed: %v", err)
		}
		if err := manager.SaveAllSessions(); err != nil {
			t.Fatalf("SaveAllSessions failed: %v", err)
		}

		manager5 := NewManagerWithPersistence(persistence)
		loaded, err := manager5.Get("startup1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if !loaded.LastAccessedAt.After(originalTime) {
			t.Error("Last accessed time should be updated and persisted")
		}
	})
}

func TestManager_LoadPersistedSessionsReportsFailures(t *testing.T) {
	persistence, configManager, sessionsDir := newTestPersistence(t)
	manager := NewManagerWithPersistence(persistence)
	manager.Create("good", "alignment", configManager.GetDefault())

	os.WriteFile(filepath.Join(sessionsDir, "bad1.json"), []byte("{"), 0644)
	os.WriteFile(filepath.Join(sessionsDir, "bad2.json"), []byte("[]"), 0644)

	fresh := NewManagerWithPersistence(persistence)
	err := fresh.LoadPersistedSessions()
	if err == nil {
		t.Fatal("Expected aggregated load error")
	}
	if !strings.Contains(err.Error(), "bad1") || !strings.Contains(err.Error(), "bad2") {
		t.Errorf("Expected both failures reported, got %v", err)
	}
	if _, err := fresh.Get("good"); err != nil {
		t.Errorf("Expected good session to load despite failures, got %v", err)
	}
}

func TestManager_PruneOrphans(t *testing.T) {
	persistence, configManager, sessionsDir := newTestPersistence(t)
	manager := NewManagerWithPersistence(persistence)

	manager.Create("keep", "alignment", configManager.GetDefault())
	manager.Create("orphan", "alignment", configManager.GetDefault())

	if err := os.Remove(filepath.Join(sessionsDir, "orphan.json")); err != nil {
		t.Fatalf("Failed to remove session file: %v", err)
	}

	if pruned := manager.PruneOrphans(); len(pruned) != 1 || pruned[0].ID != "orphan" {
		t.Errorf("Expected the orphan to be pruned, got %v", pruned)
	}
	if _, err := manager.Get("orphan"); err != ErrSessionNotFound {
		t.Errorf("Expected orphan to be gone, got %v", err)
	}
	if _, err := manager.Get("keep"); err != nil {
		t.Errorf("Expected kept session, got %v", err)
	}
}

func countPersisted(t *testing.T, fp *FilePersistence) int {
	t.Helper()
	ids, err := fp.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	return len(ids)
}
