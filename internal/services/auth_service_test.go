package services

import "github.com/yukikurage/task-chat-api/internal/models"

func (s *ServiceTestSuite) TestSignup_InternalGetsPersonalOrganization() {
	user, err := s.auth.Signup(SignupInput{Username: "  newagent ", Password: "supersecret"})
	s.Require().NoError(err)
	s.Equal("newagent", user.Username)
	s.Equal(models.UserKindInternal, user.Kind)
	s.NotZero(user.PartnerID)
	s.Equal("newagent", user.Partner.Name)

	memberships, err := s.orgs.ListOrganizationsForUser(user.ID)
	s.Require().NoError(err)
	s.Require().Len(memberships, 1)
	s.Equal(models.RoleOwner, memberships[0].Role)
}

func (s *ServiceTestSuite) TestSignup_PortalHasNoOrganization() {
	user, err := s.auth.Signup(SignupInput{Username: "client", Password: "supersecret", Email: "c@example.com", Kind: models.UserKindPortal})
	s.Require().NoError(err)
	s.True(user.IsPortal())
	s.Equal("c@example.com", user.Partner.Email)

	memberships, err := s.orgs.ListOrganizationsForUser(user.ID)
	s.Require().NoError(err)
	s.Empty(memberships)
}

func (s *ServiceTestSuite) TestSignup_Validation() {
	_, err := s.auth.Signup(SignupInput{Username: " ", Password: "supersecret"})
	s.ErrorIs(err, ErrUsernameRequired)

	_, err = s.auth.Signup(SignupInput{Username: "short", Password: "123"})
	s.ErrorIs(err, ErrPasswordTooShort)

	_, err = s.auth.Signup(SignupInput{Username: "odd", Password: "supersecret", Kind: "robot"})
	s.ErrorIs(err, ErrInvalidUserKind)

	_, err = s.auth.Signup(SignupInput{Username: "agent", Password: "supersecret"})
	s.ErrorIs(err, ErrUsernameTaken)
}

func (s *ServiceTestSuite) TestLogin() {
	user, err := s.auth.Login(LoginInput{Username: "agent", Password: "supersecret"})
	s.Require().NoError(err)
	s.Equal(s.agent.ID, user.ID)

	_, err = s.auth.Login(LoginInput{Username: "agent", Password: "wrong-password"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.auth.Login(LoginInput{Username: "ghost", Password: "supersecret"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.auth.GetUser(9999)
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *ServiceTestSuite) TestOrganizations() {
	org, err := s.orgs.CreateOrganization(CreateOrganizationInput{Name: "Support", OwnerID: s.agent.ID})
	s.Require().NoError(err)
	s.NotEmpty(org.InviteCode)

	_, err = s.orgs.CreateOrganization(CreateOrganizationInput{Name: " ", OwnerID: s.agent.ID})
	s.ErrorIs(err, ErrInvalidOrganizationName)

	_, err = s.orgs.CreateOrganization(CreateOrganizationInput{Name: "Clients", OwnerID: s.customer.ID})
	s.ErrorIs(err, ErrPortalUserNotAllowed)

	colleague := s.createInternal("colleague")
	joined, err := s.orgs.JoinOrganizationByInvite(colleague.ID, org.InviteCode)
	s.Require().NoError(err)
	s.Equal(org.ID, joined.ID)

	_, err = s.orgs.JoinOrganizationByInvite(colleague.ID, org.InviteCode)
	s.ErrorIs(err, ErrAlreadyOrganizationMember)

	_, err = s.orgs.JoinOrganizationByInvite(colleague.ID, "nope")
	s.ErrorIs(err, ErrInvalidInviteCode)

	_, err = s.orgs.JoinOrganizationByInvite(s.customer.ID, org.InviteCode)
	s.ErrorIs(err, ErrPortalUserNotAllowed)

	got, members, err := s.orgs.GetOrganizationWithMembers(org.ID)
	s.Require().NoError(err)
	s.Equal("Support", got.Name)
	s.Len(members, 2)

	_, _, err = s.orgs.GetOrganizationWithMembers(9999)
	s.ErrorIs(err, ErrOrganizationNotFound)
}

func (s *ServiceTestSuite) createInternal(username string) *models.User {
	user, err := s.auth.Signup(SignupInput{Username: username, Password: "supersecret"})
	s.Require().NoError(err)
	return user
}
