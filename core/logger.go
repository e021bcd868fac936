package core

// Logger is any service that can log & report events.
// args may carry an error, a map[string]interface{} of extras and the Person concerned.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies who a log entry is about.
type Person struct {
	ID    string
	Name  string
	Email string
}
