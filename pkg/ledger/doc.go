/*
Package ledger keeps a history of successful builds in SQLite: when each
variant was assembled, the digest of the written output, and the digest and
occurrence count of every fragment that went into it.

The package only needs a *sql.DB; the caller picks the driver.
*/
package ledger
