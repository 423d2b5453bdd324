package entity

// Role identifies which kind of caller is driving an operation.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleSystem   Role = "system"
)

// Actor is the explicit identity of a caller. ID is the user id for customers, the employee id for staff
// and zero for the system.
type Actor struct {
	ID   int64
	Role Role
}

// Customer returns a customer actor.
func Customer(userID int64) Actor { return Actor{ID: userID, Role: RoleCustomer} }

// Staff returns a staff actor.
func Staff(employeeID int64) Actor { return Actor{ID: employeeID, Role: RoleStaff} }

// System is the actor used by the payment adapter and reconciliation sweeps.
var System = Actor{Role: RoleSystem}
