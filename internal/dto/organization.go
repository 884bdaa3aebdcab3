package dto

import (
	"time"

	"github.com/yukikurage/task-chat-api/internal/models"
)

// OrganizationWithRoleDTO is one entry of the caller's organization list
type OrganizationWithRoleDTO struct {
	OrganizationDTO
	Role models.OrganizationRole `json:"role"`
}

// OrganizationMemberDTO carries the member's partner id so clients can pick
// chat participants and task customers from the member list.
type OrganizationMemberDTO struct {
	User     UserDTO                 `json:"user"`
	Role     models.OrganizationRole `json:"role"`
	JoinedAt time.Time               `json:"joined_at"`
}

type OrganizationDetailDTO struct {
	OrganizationDTO
	Members  []OrganizationMemberDTO `json:"members"`
	YourRole models.OrganizationRole `json:"your_role"`
}

func ToOrganizationWithRoleDTO(membership models.OrganizationMember) OrganizationWithRoleDTO {
	return OrganizationWithRoleDTO{
		OrganizationDTO: ToOrganizationDTO(membership.Organization, membership.Role == models.RoleOwner),
		Role:            membership.Role,
	}
}

func ToOrganizationMemberDTO(membership models.OrganizationMember) OrganizationMemberDTO {
	return OrganizationMemberDTO{
		User:     ToUserDTO(membership.User),
		Role:     membership.Role,
		JoinedAt: membership.JoinedAt,
	}
}

// ToOrganizationDetailDTO builds the detail view for a caller with role
// callerRole. Only owners see the invite code.
func ToOrganizationDetailDTO(org models.Organization, memberships []models.OrganizationMember, callerRole models.OrganizationRole) OrganizationDetailDTO {
	members := make([]OrganizationMemberDTO, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, ToOrganizationMemberDTO(m))
	}

	return OrganizationDetailDTO{
		OrganizationDTO: ToOrganizationDTO(org, callerRole == models.RoleOwner),
		Members:         members,
		YourRole:        callerRole,
	}
}
