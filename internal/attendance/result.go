package attendance

// Effects reports the secondary work done after a committed transition.
// A non-nil error here never fails the request.
type Effects struct {
	Publish error
	Device  error
}

func (e Effects) OK() bool {
	return e.Publish == nil && e.Device == nil
}

// TransitionResult is returned for every committed transition.
type TransitionResult struct {
	Record   *Record
	Event    *Event
	Decision Decision
	Effects  Effects
}
