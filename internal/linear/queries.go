package linear

const issuesQuery = `query Issues {
  issues(filter: { state: { name: { neq: "Canceled" } } }) {
    nodes {
      id
      title
      identifier
      state { name color }
      cycle { id number startsAt endsAt }
      assignee { id name avatarUrl }
    }
  }
}`

const cyclesQuery = `query Cycles {
  cycles(first: 20) {
    nodes { id number startsAt endsAt }
  }
}`

const usersQuery = `query Users {
  users {
    nodes { id name email avatarUrl active }
  }
}`

type nodes[T any] struct {
	Nodes []T `json:"nodes"`
}
