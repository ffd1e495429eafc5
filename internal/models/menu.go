package models

import "time"

// ClientActionTag is the tag of actions that open a dashboard view.
const ClientActionTag = "dashboard"

// ClientAction is the navigable entry point that groups a set of blocks.
type ClientAction struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// NavMenu is a navigation menu item pointing at a client action.
type NavMenu struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ParentID int64   `json:"parent_id,omitempty"`
	ActionID int64   `json:"action_id"`
	Sequence int     `json:"sequence"`
	GroupIDs []int64 `json:"group_ids,omitempty"`
}

// DashboardMenu owns one generated ClientAction and one NavMenu.
type DashboardMenu struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ParentMenuID   int64     `json:"parent_menu_id,omitempty"`
	GroupIDs       []int64   `json:"group_ids,omitempty"`
	Sequence       int       `json:"sequence"`
	ClientActionID int64     `json:"client_action_id"`
	NavMenuID      int64     `json:"nav_menu_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy of m.
func (m *DashboardMenu) Clone() *DashboardMenu {
	if m == nil {
		return nil
	}
	c := *m
	if m.GroupIDs != nil {
		c.GroupIDs = append([]int64(nil), m.GroupIDs...)
	}
	return &c
}

// MenuPatch is a partial update of a dashboard menu.
type MenuPatch struct {
	Name         *string  `json:"name,omitempty"`
	ParentMenuID *int64   `json:"parent_menu_id,omitempty"`
	GroupIDs     *[]int64 `json:"group_ids,omitempty"`
	Sequence     *int     `json:"sequence,omitempty"`
}
