//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_QueryAndHistory(t *testing.T) {
	env := SetupTestEnv(t)
	env.Primary.Responses = []string{
		"DIRECT ANSWER: The river is rising near downtown.\nCOMMUNITY INFO: Two residents reported flooding.",
	}

	postID := SeedPost(t, env, "River overflowing its banks near the downtown bridge", "Springfield")
	Reindex(t, env, postID)

	userID := fmt.Sprintf("user-%d", uniqueID())
	resp := DoRequest(t, env, "POST", "/api/v1/tracker/query", map[string]any{
		"query":    "is the river flooding?",
		"location": "Springfield",
	}, userID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)

	data := result["data"].(map[string]any)
	assert.Equal(t, "The river is rising near downtown.", data["direct_answer"])
	assert.Equal(t, "Two residents reported flooding.", data["community_info"])
	assert.Equal(t, "primary", data["source"])
	assert.GreaterOrEqual(t, data["memory_count"].(float64), float64(1))

	// The answered query shows up in the caller's history.
	resp = DoRequest(t, env, "GET", "/api/v1/tracker/history", nil, userID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := ParseResponse(t, resp)
	assert.Equal(t, float64(1), history["total_count"])
	records := history["data"].([]any)
	record := records[0].(map[string]any)
	assert.Equal(t, "is the river flooding?", record["query_text"])
	assert.Equal(t, "processed", record["status"])
}

func TestTracker_QueryRequiresIdentity(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "POST", "/api/v1/tracker/query", map[string]any{
		"query":    "anything",
		"location": "Springfield",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTracker_Search(t *testing.T) {
	env := SetupTestEnv(t)

	postID := SeedPost(t, env, "Volunteers handing out sandbags at the fire station", "Shelbyville")
	Reindex(t, env, postID)

	resp := DoRequest(t, env, "POST", "/api/v1/tracker/search", map[string]any{
		"query":    "sandbags",
		"location": "shelby",
	}, "user-search")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)

	matches := result["data"].([]any)
	require.NotEmpty(t, matches)
	first := matches[0].(map[string]any)
	record := first["record"].(map[string]any)
	assert.Contains(t, record["processed_content"], "sandbags")
	assert.Equal(t, "Shelbyville", record["location"])
}

func TestTracker_ReprocessRejectsBadKey(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoAdminRequest(t, env, "POST", "/api/v1/admin/reprocess", "wrong-key")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTracker_HealthEndpoints(t *testing.T) {
	env := SetupTestEnv(t)

	resp, err := http.Get(env.Server.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.Server.URL + "/health/ready")
	require.NoError(t, err)
	result := ParseResponse(t, resp)
	assert.Equal(t, "healthy", result["data"].(map[string]any)["database"])
}
