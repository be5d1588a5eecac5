/*
Package records holds the DNS record table served by joyride's DNS server.

The table maps hostnames to addresses. Each record has an Origin: records
from containers are keyed to the container ID, records from hosts files to
the file they came from, so a container dying removes exactly its own names.

	┌──────────── BUS ────────────┐        ┌──────── TABLE ────────┐
	│ container.start   ─────────────────► │ Upsert                │
	│ container.stop/die/...  ───────────► │ RemoveBySource        │
	│ hosts.entry.added/modified ────────► │ Upsert                │
	│ hosts.entry.removed  ──────────────► │ Remove (hosts only)   │
	│                                      │                       │
	│ dns.record.created/removed ◄──────── │ publish on change     │
	└─────────────────────────────┘        └───────────┬───────────┘
	                                                   │ optional
	                                              BoltStore (bbolt)

Record events are published from inside the bus handler that caused them.
The bus releases its lock before dispatch, so this nested publish is safe.

Lookup prefers an exact name and falls back to the longest matching wildcard
record (*.example.com).
*/
package records
