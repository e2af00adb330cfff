package enums

// ActorRole identifies who acted on an aggregate.
type ActorRole string

const (
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleSystem   ActorRole = "system"
)

func (r ActorRole) String() string {
	return string(r)
}
