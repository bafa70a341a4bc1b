package rules

import "fmt"

type Category string

const (
	CategoryReminder  Category = "reminder"
	CategoryRetention Category = "retention"
	CategoryFolder    Category = "folder"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryReminder, CategoryRetention, CategoryFolder:
		return true
	}
	return false
}

type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeCategory    Scope = "category"    // compliance head
	ScopeSubcategory Scope = "subcategory" // sub-head
)

// Specificity orders scopes; a higher value wins during resolution.
// Unknown scopes return -1 and never match.
func (s Scope) Specificity() int {
	switch s {
	case ScopeGlobal:
		return 0
	case ScopeCategory:
		return 1
	case ScopeSubcategory:
		return 2
	}
	return -1
}

const Wildcard = "*"

type Unit string

const (
	UnitDays   Unit = "days"
	UnitMonths Unit = "months"
	UnitYears  Unit = "years"
)

type Action string

const (
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
)

type AccessLevel string

const (
	AccessPublic     AccessLevel = "public"
	AccessRestricted AccessLevel = "restricted"
	AccessPrivate    AccessLevel = "private"
)

type EventType string

const (
	EventComplianceHeadCreated EventType = "compliance-head-created"
	EventSubHeadCreated        EventType = "sub-head-created"
	EventEntityCreated         EventType = "entity-created"
	EventDocumentTypeCreated   EventType = "document-type-created"
)

func (e EventType) Valid() bool {
	switch e {
	case EventComplianceHeadCreated, EventSubHeadCreated, EventEntityCreated, EventDocumentTypeCreated:
		return true
	}
	return false
}

type ReminderPayload struct {
	Tokens []string `json:"tokens" bson:"tokens"`
}

type RetentionPayload struct {
	Period int    `json:"period" bson:"period"`
	Unit   Unit   `json:"unit" bson:"unit"`
	Action Action `json:"action" bson:"action"`
}

type FolderPayload struct {
	Trigger          EventType   `json:"trigger" bson:"trigger"`
	PathTemplate     string      `json:"path_template" bson:"path_template"`
	AccessLevel      AccessLevel `json:"access_level" bson:"access_level"`
	DefaultAssignees []string    `json:"default_assignees,omitempty" bson:"default_assignees"`
}

// Rule is discriminated by Category; exactly one payload pointer is set and
// it must match the category.
type Rule struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	Scope         Scope     `json:"scope"`
	TargetMatcher string    `json:"target_matcher"`
	IsActive      bool      `json:"is_active"`
	Key           string    `json:"key,omitempty"`
	Condition     string    `json:"condition,omitempty"`

	Reminder  *ReminderPayload  `json:"reminder,omitempty"`
	Retention *RetentionPayload `json:"retention,omitempty"`
	Folder    *FolderPayload    `json:"folder,omitempty"`
}

func (r Rule) IsWildcard() bool {
	return r.TargetMatcher == Wildcard
}

// CheckShape reports a rule whose payload does not match its category.
func (r Rule) CheckShape() error {
	if !r.Category.Valid() {
		return fmt.Errorf("rule %s: unknown category %q", r.ID, r.Category)
	}
	if r.Scope.Specificity() < 0 {
		return fmt.Errorf("rule %s: unknown scope %q", r.ID, r.Scope)
	}

	set := 0
	if r.Reminder != nil {
		set++
	}
	if r.Retention != nil {
		set++
	}
	if r.Folder != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("rule %s: expected exactly one payload, got %d", r.ID, set)
	}

	switch {
	case r.Category == CategoryReminder && r.Reminder == nil,
		r.Category == CategoryRetention && r.Retention == nil,
		r.Category == CategoryFolder && r.Folder == nil:
		return fmt.Errorf("rule %s: payload does not match category %q", r.ID, r.Category)
	}
	return nil
}

// Clone returns a deep copy so snapshots never share payload slices.
func (r Rule) Clone() Rule {
	out := r
	if r.Reminder != nil {
		p := *r.Reminder
		p.Tokens = append([]string(nil), r.Reminder.Tokens...)
		out.Reminder = &p
	}
	if r.Retention != nil {
		p := *r.Retention
		out.Retention = &p
	}
	if r.Folder != nil {
		p := *r.Folder
		p.DefaultAssignees = append([]string(nil), r.Folder.DefaultAssignees...)
		out.Folder = &p
	}
	return out
}

// Target is the concrete thing being evaluated (task, document or taxonomy
// node). Callers build it; the resolver never fetches anything.
type Target struct {
	ID               string            `json:"id,omitempty"`
	CategoryName     string            `json:"category_name,omitempty"`
	SubcategoryName  string            `json:"subcategory_name,omitempty"`
	EntityName       string            `json:"entity_name,omitempty"`
	DocumentTypeName string            `json:"document_type_name,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// FieldFor returns the target field an exact matcher at scope compares to.
func (t Target) FieldFor(scope Scope) (string, bool) {
	switch scope {
	case ScopeCategory:
		return t.CategoryName, true
	case ScopeSubcategory:
		return t.SubcategoryName, true
	}
	return "", false
}

// Vars flattens the target for CEL conditions and template contexts.
func (t Target) Vars() map[string]string {
	vars := make(map[string]string, len(t.Attributes)+5)
	for k, v := range t.Attributes {
		vars[k] = v
	}
	if t.ID != "" {
		vars["id"] = t.ID
	}
	if t.CategoryName != "" {
		vars["compliance_head"] = t.CategoryName
	}
	if t.SubcategoryName != "" {
		vars["sub_head"] = t.SubcategoryName
	}
	if t.EntityName != "" {
		vars["entity"] = t.EntityName
	}
	if t.DocumentTypeName != "" {
		vars["document_type"] = t.DocumentTypeName
	}
	return vars
}
