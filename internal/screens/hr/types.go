package hr

import "time"

// Department groups employees.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Employee is one row of the staff directory.
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department_id"`
	Title      string    `json:"title"`
	Active     bool      `json:"active"`
	HiredAt    time.Time `json:"hired_at"`
}

// Leave statuses.
const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

// LeaveRequest is an employee's request for time off.
type LeaveRequest struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Employee   string    `json:"employee_name"`
	Kind       string    `json:"kind"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Status     string    `json:"status"`
}

// Attendance is today's attendance summary. Remote is reported only by
// sites that track remote work.
type Attendance struct {
	Present int  `json:"present"`
	Absent  int  `json:"absent"`
	Late    int  `json:"late"`
	OnLeave int  `json:"on_leave"`
	Remote  *int `json:"remote,omitempty"`
}

// Presence is the live check-in status of one employee.
type Presence struct {
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Since      time.Time `json:"since"`
}
