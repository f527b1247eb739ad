package quality

import "regexp"

// EmailPattern is the address shape accepted for participants and users.
var EmailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// EventCategories are the known categories. Anything else is only a warning.
var EventCategories = []string{
	"Conference", "Workshop", "Meetup", "Webinar", "Seminar",
	"Training", "Hackathon", "Social", "Other", "",
}

// EventValidator checks event records with keys title, location, date, seats, category.
func EventValidator() *Validator {
	return NewValidator().
		ExpectColumn("title").
		ExpectColumn("date").
		ExpectColumn("location").
		ExpectNotEmpty("title").
		ExpectNotEmpty("location").
		ExpectNotEmpty("date").
		ExpectLength("title", 3, 200).
		ExpectBetween("seats", 1, 10000).
		ExpectInSet("category", EventCategories, SeverityWarning)
}

// ParticipantValidator checks participant records with keys name, email, phone.
func ParticipantValidator() *Validator {
	return NewValidator().
		ExpectColumn("name").
		ExpectColumn("email").
		ExpectNotEmpty("name").
		ExpectNotEmpty("email").
		ExpectMatch("email", EmailPattern).
		ExpectLength("name", 2, 100)
}

// UserValidator checks account records with keys username, email, password.
func UserValidator() *Validator {
	return NewValidator().
		ExpectColumn("username").
		ExpectColumn("email").
		ExpectColumn("password").
		ExpectNotEmpty("username").
		ExpectNotEmpty("email").
		ExpectNotEmpty("password").
		ExpectMatch("email", EmailPattern).
		ExpectLength("username", 3, 50).
		ExpectLength("password", 6, 100)
}
