package stream

import "sync"

// ShareReplay turns src into a ref-counted, hot Observable.
//
// The first subscriber connects src; later subscribers join the running
// connection and immediately receive its latest value. When the last
// subscriber leaves, or src terminates, the connection is dropped and the next
// subscriber starts a fresh one.
func ShareReplay[T any](src Observable[T]) Observable[T] {
	s := &shared[T]{src: src}
	return Func[T](s.subscribe)
}

type shared[T any] struct {
	src Observable[T]

	mu      sync.Mutex
	subject *ReplaySubject[T]
	conn    Subscription
	refs    int
}

func (s *shared[T]) subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	subj := s.subject
	connect := subj == nil
	if connect {
		subj = NewReplaySubject[T]()
		s.subject = subj
	}
	s.refs++
	s.mu.Unlock()

	inner := subj.Subscribe(o)
	if connect {
		conn := s.src.Subscribe(Observer[T]{
			Next: subj.Next,
			Error: func(err error) {
				s.reset(subj)
				subj.Error(err)
			},
			Complete: func() {
				s.reset(subj)
				subj.Complete()
			},
		})
		s.mu.Lock()
		if s.subject == subj {
			s.conn = conn
			conn = nil
		}
		s.mu.Unlock()
		if conn != nil {
			// Everyone left, or src terminated, while connecting.
			conn.Unsubscribe()
		}
	}

	return SubscriptionFunc(func() {
		inner.Unsubscribe()
		s.mu.Lock()
		if s.subject != subj {
			s.mu.Unlock()
			return
		}
		s.refs--
		if s.refs > 0 {
			s.mu.Unlock()
			return
		}
		conn := s.conn
		s.subject, s.conn = nil, nil
		s.mu.Unlock()
		if conn != nil {
			conn.Unsubscribe()
		}
	})
}

func (s *shared[T]) reset(subj *ReplaySubject[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject == subj {
		s.subject, s.conn, s.refs = nil, nil, 0
	}
}
