/*
Package hosts turns hosts files into record-table events.

A Watcher watches the configured directories with fsnotify. Every change
arms a debounce timer; when it fires the watcher re-reads all files, diffs
the result against the previous scan and publishes one event per changed
hostname:

	hosts.entry.removed   hostname no longer defined
	hosts.entry.modified  address or defining file changed
	hosts.entry.added     new hostname

Files use the /etc/hosts format, one address per line followed by a name
and optional aliases. Files are read in name order and the first definition
of a hostname wins. Dotfiles and editor swap files are ignored.

The watcher does not write records itself: records.Table subscribes to
hosts.entry.* and applies them.
*/
package hosts
