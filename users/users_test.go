package users_test

import (
	"encoding/json"
	"testing"

	"github.com/hosilim/dashboard-session/users"
	fakeuserrepo "github.com/hosilim/dashboard-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, ok := users.ParseRole(" broker ")
	require.True(t, ok)
	require.Equal(t, users.RoleBroker, role)

	_, ok = users.ParseRole("courier")
	require.False(t, ok)
}

func TestNewRoles(t *testing.T) {
	roles := users.NewRoles("farmer", users.RoleBroker, "FARMER", "courier")
	require.Equal(t, users.Roles{users.RoleFarmer, users.RoleBroker}, roles)
	require.Nil(t, users.NewRoles())
}

func TestRoles_Primary(t *testing.T) {
	tests := []struct {
		name  string
		roles users.Roles
		want  users.RoleType
		found bool
	}{
		{"admin wins over everything", users.NewRoles(users.RoleFarmer, users.RoleBroker, users.RoleAdmin), users.RoleAdmin, true},
		{"broker over farmer", users.NewRoles(users.RoleFarmer, users.RoleBroker), users.RoleBroker, true},
		{"farmer only", users.NewRoles(users.RoleFarmer), users.RoleFarmer, true},
		{"no roles", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.roles.Primary()
			require.Equal(t, tt.found, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRoles_UnmarshalJSON(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		var p users.Profile
		require.NoError(t, json.Unmarshal([]byte(`{"roles":["admin","BROKER","admin"]}`), &p))
		require.Equal(t, users.Roles{users.RoleAdmin, users.RoleBroker}, p.Roles)
	})

	t.Run("single string", func(t *testing.T) {
		var p users.Profile
		require.NoError(t, json.Unmarshal([]byte(`{"roles":"FARMER"}`), &p))
		require.True(t, p.IsFarmer())
	})

	t.Run("comma separated string", func(t *testing.T) {
		var p users.Profile
		require.NoError(t, json.Unmarshal([]byte(`{"roles":"BROKER, FARMER"}`), &p))
		require.Equal(t, users.Roles{users.RoleBroker, users.RoleFarmer}, p.Roles)
	})

	t.Run("null", func(t *testing.T) {
		var p users.Profile
		require.NoError(t, json.Unmarshal([]byte(`{"roles":null}`), &p))
		require.Nil(t, p.Roles)
	})

	t.Run("wrong type", func(t *testing.T) {
		var p users.Profile
		require.Error(t, json.Unmarshal([]byte(`{"roles":42}`), &p))
	})
}

func TestProfile_Predicates(t *testing.T) {
	var nilProfile *users.Profile
	require.False(t, nilProfile.IsAdmin())
	require.False(t, users.HasRole(nilProfile, users.RoleFarmer))
	require.False(t, nilProfile.IsBlocked())
	_, ok := nilProfile.PrimaryRole()
	require.False(t, ok)

	p := &users.Profile{
		FirstName: "Dilshod",
		LastName:  "Karimov",
		Roles:     users.NewRoles(users.RoleBroker, users.RoleFarmer),
		Status:    "blocked",
	}
	require.True(t, p.IsBroker())
	require.True(t, users.HasRole(p, users.RoleFarmer))
	require.False(t, p.IsAdmin())
	require.True(t, p.IsBlocked())
	require.Equal(t, "Dilshod Karimov", p.FullName())

	role, ok := p.PrimaryRole()
	require.True(t, ok)
	require.Equal(t, users.RoleBroker, role)
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	p := &users.Profile{Phone: "+998901112233", Roles: users.NewRoles(users.RoleFarmer), Status: users.StatusActive}
	require.NoError(t, repo.Upsert(p))
	require.NotEmpty(t, p.ID)

	got, err := repo.GetByPhone(p.Phone)
	require.NoError(t, err)
	require.Equal(t, p, got)

	require.NoError(t, repo.SetStatus(p.Phone, users.StatusBlocked))
	got, err = repo.GetByID(p.ID)
	require.NoError(t, err)
	require.True(t, got.IsBlocked())

	require.NoError(t, repo.Delete(p.Phone))
	_, err = repo.GetByPhone(p.Phone)
	require.Error(t, err)
	require.Error(t, repo.Delete(p.Phone))
}
