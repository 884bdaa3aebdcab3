package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-chat-api/internal/dto"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/testutil"
)

func TestOrganizationHandler_CreateOrganization(t *testing.T) {
	env := setupHandlerTestEnv(t)

	c, w := authContext(http.MethodPost, "/api/organizations", mustJSON(t, map[string]string{"name": "New Org"}), env.agent.ID)
	env.orgHandler.CreateOrganization(c)

	require.Equal(t, http.StatusCreated, w.Code)

	var response dto.OrganizationDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, "New Org", response.Name)
	require.NotEmpty(t, response.InviteCode)
}

func TestOrganizationHandler_CreateOrganization_PortalUser(t *testing.T) {
	env := setupHandlerTestEnv(t)

	c, w := authContext(http.MethodPost, "/api/organizations", mustJSON(t, map[string]string{"name": "Shop"}), env.customer.ID)
	env.orgHandler.CreateOrganization(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestOrganizationHandler_ListOrganizations(t *testing.T) {
	env := setupHandlerTestEnv(t)

	c, w := authContext(http.MethodGet, "/api/organizations", nil, env.agent.ID)
	env.orgHandler.ListOrganizations(c)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string][]dto.OrganizationWithRoleDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	orgs := response["organizations"]
	require.Len(t, orgs, 1)
	require.Equal(t, "acme", orgs[0].OrganizationDTO.Name)
	require.Equal(t, models.RoleOwner, orgs[0].Role)
	require.Equal(t, env.org.InviteCode, orgs[0].InviteCode)
}

func TestOrganizationHandler_GetOrganization(t *testing.T) {
	env := setupHandlerTestEnv(t)

	var member models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, env.teammate.ID).First(&member).Error)

	url := "/api/organizations/" + strconv.FormatUint(env.org.ID, 10)
	c, w := authContext(http.MethodGet, url, nil, env.teammate.ID)
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(env.org.ID, 10)}}
	c.Set("organization_member", member)

	env.orgHandler.GetOrganization(c)

	require.Equal(t, http.StatusOK, w.Code)

	var response dto.OrganizationDetailDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, "acme", response.Name)
	require.Equal(t, models.RoleMember, response.YourRole)
	require.Len(t, response.Members, 2)
	require.Empty(t, response.InviteCode, "members other than the owner do not see the invite code")
	for _, m := range response.Members {
		require.NotZero(t, m.User.PartnerID)
	}
}

func TestOrganizationHandler_JoinOrganization(t *testing.T) {
	env := setupHandlerTestEnv(t)

	newcomer := testutil.CreateUser(t, env.db, "newcomer", models.UserKindInternal)

	c, w := authContext(http.MethodPost, "/api/organizations/join", mustJSON(t, map[string]string{"invite_code": env.org.InviteCode}), newcomer.ID)
	env.orgHandler.JoinOrganization(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = authContext(http.MethodPost, "/api/organizations/join", mustJSON(t, map[string]string{"invite_code": env.org.InviteCode}), newcomer.ID)
	env.orgHandler.JoinOrganization(c)
	require.Equal(t, http.StatusConflict, w.Code)

	c, w = authContext(http.MethodPost, "/api/organizations/join", mustJSON(t, map[string]string{"invite_code": "UNKNOWN"}), env.agent.ID)
	env.orgHandler.JoinOrganization(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	c, w = authContext(http.MethodPost, "/api/organizations/join", mustJSON(t, map[string]string{"invite_code": env.org.InviteCode}), env.customer.ID)
	env.orgHandler.JoinOrganization(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
