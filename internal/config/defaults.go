package config

// DefaultConfigYAML contains the default configuration YAML content.
// Used by `critic init` to seed a project-local .critic.yaml.
const DefaultConfigYAML = `# critic configuration
#
# Values not specified here use sensible defaults.

# Logging
log:
  level: info     # debug, info, warn, error
  format: auto    # auto, text, json

# Supervised execution limits. A zero duration disables that signal.
run:
  timeout: 30m        # wall clock limit per reviewer invocation
  stall_timeout: 0s   # kill runs showing no liveness signal for this long
  heartbeat: 30s      # liveness summary period
  poll_interval: 5s   # supervisor wake-up interval

# Review workflow
review:
  cycles: 3
  doc: docs/autoep-design.md
  todo_dir: todo
  tasks_dir: tasks
  commit: true        # commit the document after each cycle
  fallback: true      # allow fallback reviewers on timeout/failure

# Reviewer selection
reviewers:
  # Used when no --reviewer flags are given; empty asks interactively.
  default: []
  # Optional YAML file with extra reviewer presets merged over the
  # built-in ones, e.g.:
  #   reviewers:
  #     - name: "My Agent"
  #       key: my-agent
  #       command: "my-agent --headless"
  #       probe: none
  file: ""

# Live monitor (HTTP status + SSE event stream while a command runs)
monitor:
  enabled: false
  addr: 127.0.0.1:8765
`
