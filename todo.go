/*
	Project: Campus - online admissions for undergraduate and graduate programs
	Target: Universities (single campus for now)
*/
package campus

/*
apps:
	- api: REST API (catalog, contact form, enrollment wizard, students review, users)
	- admin: CLI (adduser, resetpassword, approve, migrate)

TODO: admin: export pending enrollments as CSV for the admissions committee
TODO: notify the student by email when the staged documents of an abandoned wizard are discarded
*/
