// Package core contains the domain data model shared by all mailflow
// packages: the email and scheduling types threaded through the workflow,
// the collaborator interfaces (mail store, calendar, notifier), and the
// error taxonomy that separates normal no-match outcomes from collaborator
// failures before and after a side effect has committed.
package core
