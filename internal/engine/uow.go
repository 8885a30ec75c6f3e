package engine

// unitOfWork collects undo closures as a mutation applies its effects. On
// failure the closures run in reverse order, restoring ledgers and token
// books to their pre-call state. Undo closures must not fail; an undo that
// cannot apply indicates corrupted state and panics inside the closure.
type unitOfWork struct {
	undos []func()
}

func newUnitOfWork() *unitOfWork {
	return &unitOfWork{}
}

func (u *unitOfWork) onRollback(fn func()) {
	u.undos = append(u.undos, fn)
}

func (u *unitOfWork) rollback() {
	for i := len(u.undos) - 1; i >= 0; i-- {
		u.undos[i]()
	}
	u.undos = nil
}
