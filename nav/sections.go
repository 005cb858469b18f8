package nav

import "github.com/hosilim/dashboard-session/users"

// SubSection is an entry of a section's submenu.
type SubSection struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Section is a top level dashboard navigation entry.
type Section struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Path        string       `json:"path"`
	HasSubmenu  bool         `json:"hasSubmenu"`
	Subs        []SubSection `json:"subs,omitempty"`
}

// SubPath is the route of sub within s. The "all" sub lives at the section root.
func (s Section) SubPath(sub string) string {
	if sub == SubAll {
		return s.Path
	}
	return s.Path + "/" + sub
}

func (s Section) hasSub(sub string) bool {
	for _, ss := range s.Subs {
		if ss.ID == sub {
			return true
		}
	}
	return false
}

func adminSections() []Section {
	return []Section{
		{ID: "overview", DisplayName: "Overview", Path: RouteAdminDashboard},
		{ID: "users", DisplayName: "Users", Path: RouteAdminDashboard + "/users"},
		{ID: "products", DisplayName: "Products", Path: RouteAdminDashboard + "/products"},
		{ID: "orders", DisplayName: "Orders", Path: RouteAdminDashboard + "/orders"},
		{ID: "settings", DisplayName: "Settings", Path: RouteAdminDashboard + "/settings"},
	}
}

func brokerSections() []Section {
	return []Section{
		{ID: "overview", DisplayName: "Overview", Path: RouteBrokerDashboard},
		{
			ID:          "sales",
			DisplayName: "Sales",
			Path:        RouteBrokerDashboard + "/sales",
			HasSubmenu:  true,
			Subs: []SubSection{
				{ID: SubAll, DisplayName: "All sales"},
				{ID: "new", DisplayName: "New"},
				{ID: "active", DisplayName: "Active"},
				{ID: "completed", DisplayName: "Completed"},
			},
		},
		{
			ID:          "baskets",
			DisplayName: "Baskets",
			Path:        RouteBrokerDashboard + "/baskets",
			HasSubmenu:  true,
			Subs: []SubSection{
				{ID: SubAll, DisplayName: "All baskets"},
				{ID: "new", DisplayName: "New"},
				{ID: "archived", DisplayName: "Archived"},
			},
		},
		{ID: "farmers", DisplayName: "Farmers", Path: RouteBrokerDashboard + "/farmers"},
		{ID: "profile", DisplayName: "Profile", Path: RouteBrokerDashboard + "/profile"},
	}
}

func farmerSections() []Section {
	return []Section{
		{ID: "overview", DisplayName: "Overview", Path: RouteFarmerDashboard},
		{ID: "products", DisplayName: "My products", Path: RouteFarmerDashboard + "/products"},
		{ID: "orders", DisplayName: "Orders", Path: RouteFarmerDashboard + "/orders"},
		{ID: "profile", DisplayName: "Profile", Path: RouteFarmerDashboard + "/profile"},
	}
}

var roleSections = map[users.RoleType]func() []Section{
	users.RoleAdmin:  adminSections,
	users.RoleBroker: brokerSections,
	users.RoleFarmer: farmerSections,
}

// SectionsFor lists the sections of the user's primary role, in display order. A
// user without a recognised role gets the farmer sections; an anonymous user gets none.
// Every call returns a fresh slice.
func SectionsFor(user *users.Profile) []Section {
	if user == nil {
		return nil
	}
	role, ok := user.PrimaryRole()
	if !ok {
		return farmerSections()
	}
	return roleSections[role]()
}

// SectionsForPath lists the sections of the role whose area contains p, so a user
// holding several roles sees the sidebar of the dashboard being shown. Paths outside
// every held area get SectionsFor(user).
func SectionsForPath(user *users.Profile, p string) []Section {
	if user == nil {
		return nil
	}
	p = CleanPath(p)
	for _, role := range users.RolePriority {
		if user.HasRole(role) && within(p, roleAreas[role]) {
			return roleSections[role]()
		}
	}
	return SectionsFor(user)
}

// heldSections lists the sections of every role user holds, in role priority order.
func heldSections(user *users.Profile) []Section {
	var sections []Section
	for _, role := range users.RolePriority {
		if user.HasRole(role) {
			sections = append(sections, roleSections[role]()...)
		}
	}
	if len(sections) == 0 && user != nil {
		sections = farmerSections()
	}
	return sections
}
