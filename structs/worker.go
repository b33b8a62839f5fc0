package structs

// Worker is a slot token in the scheduler pool.
type Worker struct {
	Id int
}
