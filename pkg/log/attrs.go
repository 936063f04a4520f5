package log

import "log/slog"

func CorrelationID[T ~string](id T) slog.Attr {
	return slog.String("correlation_id", string(id))
}

func Flow[T ~string](name T) slog.Attr {
	return slog.String("flow", string(name))
}

func Action[T ~string](kind T) slog.Attr {
	return slog.String("action", string(kind))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Impact[T ~string](level T) slog.Attr {
	return slog.String("impact", string(level))
}

func Service(name string) slog.Attr {
	return slog.String("adapter", name)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
