/*
Package configrepo loads environment definitions contributed by config
repositories from a directory of YAML files.

Each file is one repository, identified by its base name without extension:

	# team-a.yaml
	pipelines: [build-a, deploy-a]
	environments:
	  - name: uat
	    pipelines: [deploy-a]
	    agents: [agent-7]

The Watcher applies every file through a Sink (the manager), skips files
whose content is unchanged, and removes a repository when its file is
deleted. File events are debounced with fsnotify so an editor's burst of
writes costs one sync. A file that fails to parse or validate is logged and
left out until it is fixed; the repositories already applied stay in place.
*/
package configrepo
