package workers

import (
	"reflect"

	"chat-probe/contract"
)

// workerName retrieves the type name of a worker via reflection, for
// logging and supervision without a naming method on the interface.
func workerName(w contract.Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
