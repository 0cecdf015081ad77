package registry

import (
	"time"
)

// Entity type names used in policy contexts and error messages.
const (
	EntityPerson     = "person"
	EntityGroup      = "group"
	EntityWork       = "work"
	EntityMembership = "membership"
	EntityUser       = "user"
)

// User group privilege levels, mapped to role principals at
// authentication time.
const (
	LevelAdmin   = 100
	LevelManager = 80
	LevelEditor  = 60
	LevelOwner   = 40
	LevelViewer  = 10
)

// Person is a registered individual. Accounts are an unordered collection
// keyed by (type, value); positions are an ordered collection. Memberships
// are managed through their own resource but loaded here because the
// person's access rules derive ownership grants from them.
type Person struct {
	ID               int64
	Name             string
	FamilyName       string
	FamilyNamePrefix string
	GivenName        string
	Initials         string
	AlternativeName  string
	Honorary         string
	SearchTerms      string

	Accounts  *[]*Account
	Positions *[]*Position

	Memberships []*Membership
}

func (p *Person) EntityName() string { return EntityPerson }
func (p *Person) Key() int64         { return p.ID }
func (p *Person) SetKey(id int64)    { p.ID = id }

// Account is an external account or identifier attached to a person or
// group, keyed naturally by (type, value).
type Account struct {
	ID      int64
	OwnerID int64
	Type    string
	Value   string
}

// AccountKey is the natural key for set reconciliation.
type AccountKey struct {
	Type  string
	Value string
}

func (a *Account) NaturalKey() AccountKey {
	return AccountKey{Type: a.Type, Value: a.Value}
}

// Position is a side position a person holds at a group.
type Position struct {
	ID          int64
	PersonID    int64
	GroupID     int64
	Type        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Position    int
}

func (p *Position) ItemID() int64     { return p.ID }
func (p *Position) SetPosition(i int) { p.Position = i }

// Group is an organisation or organisational unit. Groups form a forest
// via ParentID; the closure resolver tolerates accidental cycles.
type Group struct {
	ID                int64
	ParentID          *int64
	Name              string
	InternationalName string
	AbbreviatedName   string
	NativeName        string
	Type              string
	SearchTerms       string

	Accounts *[]*Account
}

func (g *Group) EntityName() string { return EntityGroup }
func (g *Group) Key() int64         { return g.ID }
func (g *Group) SetKey(id int64)    { g.ID = id }

// Membership records that a person belongs to a group during a period.
type Membership struct {
	ID        int64
	PersonID  int64
	GroupID   int64
	StartDate *time.Time
	EndDate   *time.Time
}

func (m *Membership) EntityName() string { return EntityMembership }
func (m *Membership) Key() int64         { return m.ID }
func (m *Membership) SetKey(id int64)    { m.ID = id }

// Work is a research output. Contributors, descriptions and relations are
// ordered collections; identifiers and measures are unordered natural-key
// collections. Each contributor carries its own nested ordered collection
// of affiliations.
type Work struct {
	ID          int64
	Type        string
	Title       string
	Issued      time.Time
	SearchTerms string

	Contributors *[]*Contributor
	Descriptions *[]*Description
	Relations    *[]*Relation
	Identifiers  *[]*Identifier
	Measures     *[]*Measure
}

func (w *Work) EntityName() string { return EntityWork }
func (w *Work) Key() int64         { return w.ID }
func (w *Work) SetKey(id int64)    { w.ID = id }

// Contributor links an actor (person or group) to a work in a role.
type Contributor struct {
	ID       int64
	WorkID   int64
	PersonID *int64
	GroupID  *int64
	Role     string
	Position int

	Affiliations *[]*Affiliation
}

func (c *Contributor) ItemID() int64     { return c.ID }
func (c *Contributor) SetPosition(i int) { c.Position = i }

// Affiliation scopes one contribution to a group.
type Affiliation struct {
	ID            int64
	WorkID        int64
	ContributorID int64
	GroupID       int64
	Position      int
}

func (a *Affiliation) ItemID() int64     { return a.ID }
func (a *Affiliation) SetPosition(i int) { a.Position = i }

// Description is a typed text attached to a work (abstract, keywords, ...).
type Description struct {
	ID       int64
	WorkID   int64
	Type     string
	Format   string
	Value    string
	Position int
}

func (d *Description) ItemID() int64     { return d.ID }
func (d *Description) SetPosition(i int) { d.Position = i }

// Relation links a work to another work (isPartOf, references, ...).
type Relation struct {
	ID       int64
	WorkID   int64
	TargetID int64
	Type     string
	Location string
	Position int
}

func (r *Relation) ItemID() int64     { return r.ID }
func (r *Relation) SetPosition(i int) { r.Position = i }

// Identifier is an external identifier of a work, keyed by (type, value).
type Identifier struct {
	ID     int64
	WorkID int64
	Type   string
	Value  string
}

// IdentifierKey is the natural key for set reconciliation.
type IdentifierKey struct {
	Type  string
	Value string
}

func (i *Identifier) NaturalKey() IdentifierKey {
	return IdentifierKey{Type: i.Type, Value: i.Value}
}

// Measure is a metric attached to a work, keyed by type: at most one value
// per measure type.
type Measure struct {
	ID     int64
	WorkID int64
	Type   string
	Value  string
}

// User is an authenticatable account. UserGroup is the privilege level
// (LevelAdmin..LevelViewer).
type User struct {
	ID          int64
	UserID      string
	Credentials string
	UserGroup   int
	SearchTerms string
}

func (u *User) EntityName() string { return EntityUser }
func (u *User) Key() int64         { return u.ID }
func (u *User) SetKey(id int64)    { u.ID = id }

// Owner links a user account to a person or group record it owns. Exactly
// one of PersonID/GroupID is set.
type Owner struct {
	ID       int64
	UserID   string
	PersonID *int64
	GroupID  *int64
}
